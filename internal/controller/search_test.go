package controller

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kalambet/mmx/internal/backend"
)

type mockSearcher struct {
	textFn  func(ctx context.Context, text string, numResults int, collection string) ([]backend.ResultItem, error)
	mediaFn func(ctx context.Context, kind backend.FileType, filename string, numResults int, collection string) ([]backend.ResultItem, error)
}

func (m *mockSearcher) SearchText(ctx context.Context, text string, numResults int, collection string) ([]backend.ResultItem, error) {
	return m.textFn(ctx, text, numResults, collection)
}

func (m *mockSearcher) SearchMedia(ctx context.Context, kind backend.FileType, filename string, _ io.Reader, numResults int, collection string) ([]backend.ResultItem, error) {
	return m.mediaFn(ctx, kind, filename, numResults, collection)
}

func rankedItems(names ...string) []backend.ResultItem {
	items := make([]backend.ResultItem, len(names))
	for i, name := range names {
		items[i] = backend.ResultItem{
			Filename: name,
			FileType: backend.FileTypeImage,
			Rank:     i + 1,
		}
	}
	return items
}

func TestQueryValidate(t *testing.T) {
	cases := []struct {
		name string
		q    Query
		ok   bool
	}{
		{"text ok", Query{Modality: ModalityText, Text: "sunset", NumResults: 5}, true},
		{"text empty", Query{Modality: ModalityText, Text: "", NumResults: 5}, false},
		{"text whitespace", Query{Modality: ModalityText, Text: "   ", NumResults: 5}, false},
		{"image ok", Query{Modality: ModalityImage, FilePath: "x.jpg", NumResults: 10}, true},
		{"image no file", Query{Modality: ModalityImage, NumResults: 10}, false},
		{"audio no file", Query{Modality: ModalityAudio, NumResults: 3}, false},
		{"bad modality", Query{Modality: "video", FilePath: "x", NumResults: 5}, false},
		{"bad count", Query{Modality: ModalityText, Text: "x", NumResults: 7}, false},
		{"count 20", Query{Modality: ModalityText, Text: "x", NumResults: 20}, true},
	}
	for _, tc := range cases {
		err := tc.q.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok {
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("%s: expected *ValidationError, got %v", tc.name, err)
			}
		}
	}
}

func TestDispatcher_TextQueryStoresResults(t *testing.T) {
	var gotText, gotCollection string
	s := &mockSearcher{textFn: func(_ context.Context, text string, _ int, collection string) ([]backend.ResultItem, error) {
		gotText, gotCollection = text, collection
		return rankedItems("a.jpg", "b.jpg"), nil
	}}
	d := NewDispatcher(s)

	items, err := d.Dispatch(ctx, Query{Modality: ModalityText, Text: "  sunset  ", NumResults: 5, Collection: "col"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotText != "sunset" {
		t.Errorf("text = %q, want trimmed", gotText)
	}
	if gotCollection != "col" {
		t.Errorf("collection = %q", gotCollection)
	}
	if len(items) != 2 || len(d.Results()) != 2 {
		t.Errorf("results = %d/%d, want 2/2", len(items), len(d.Results()))
	}
	if d.Filter() != DefaultFilter() {
		t.Errorf("filter = %+v, want default", d.Filter())
	}
}

func TestDispatcher_MediaQueryUsesBaseName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "query.wav")
	if err := os.WriteFile(path, []byte("RIFF0000WAVE"), 0o644); err != nil {
		t.Fatal(err)
	}

	var gotKind backend.FileType
	var gotName string
	s := &mockSearcher{mediaFn: func(_ context.Context, kind backend.FileType, filename string, _ int, _ string) ([]backend.ResultItem, error) {
		gotKind, gotName = kind, filename
		return rankedItems("hit.wav"), nil
	}}
	d := NewDispatcher(s)

	if _, err := d.Dispatch(ctx, Query{Modality: ModalityAudio, FilePath: path, NumResults: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKind != backend.FileTypeAudio {
		t.Errorf("kind = %q", gotKind)
	}
	if gotName != "query.wav" {
		t.Errorf("filename = %q, want base name", gotName)
	}
}

func TestDispatcher_SupersededResponseIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	s := &mockSearcher{textFn: func(_ context.Context, text string, _ int, _ string) ([]backend.ResultItem, error) {
		if text == "first" {
			close(started)
			<-release
			return rankedItems("stale.jpg"), nil
		}
		return rankedItems("fresh1.jpg", "fresh2.jpg"), nil
	}}
	d := NewDispatcher(s)

	firstErr := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(ctx, Query{Modality: ModalityText, Text: "first", NumResults: 5})
		firstErr <- err
	}()

	<-started
	items, err := d.Dispatch(ctx, Query{Modality: ModalityText, Text: "second", NumResults: 5})
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("second dispatch returned %d items", len(items))
	}

	close(release)
	select {
	case err := <-firstErr:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("first dispatch err = %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first dispatch never resolved")
	}

	got := d.Results()
	if len(got) != 2 || got[0].Filename != "fresh1.jpg" {
		t.Errorf("stored results = %+v, want the later query's", got)
	}
}

func TestDispatcher_SupersededFailureLeavesResultsIntact(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	s := &mockSearcher{textFn: func(_ context.Context, text string, _ int, _ string) ([]backend.ResultItem, error) {
		if text == "first" {
			close(started)
			<-release
			return nil, errors.New("timeout")
		}
		return rankedItems("kept.jpg"), nil
	}}
	d := NewDispatcher(s)

	firstErr := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(ctx, Query{Modality: ModalityText, Text: "first", NumResults: 5})
		firstErr <- err
	}()

	<-started
	if _, err := d.Dispatch(ctx, Query{Modality: ModalityText, Text: "second", NumResults: 5}); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}

	close(release)
	if err := <-firstErr; !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale failure err = %v, want ErrSuperseded", err)
	}
	if got := d.Results(); len(got) != 1 || got[0].Filename != "kept.jpg" {
		t.Errorf("results = %+v, stale failure must not clear them", got)
	}
}

func TestDispatcher_CurrentFailureClearsResults(t *testing.T) {
	calls := 0
	s := &mockSearcher{textFn: func(_ context.Context, _ string, _ int, _ string) ([]backend.ResultItem, error) {
		calls++
		if calls == 1 {
			return rankedItems("a.jpg"), nil
		}
		return nil, &backend.APIError{Message: "index not loaded"}
	}}
	d := NewDispatcher(s)

	if _, err := d.Dispatch(ctx, Query{Modality: ModalityText, Text: "ok", NumResults: 5}); err != nil {
		t.Fatal(err)
	}
	d.SetFilter(FilterState{ShowImages: true, ShowAudio: false})

	_, err := d.Dispatch(ctx, Query{Modality: ModalityText, Text: "boom", NumResults: 5})
	var qErr *QueryError
	if !errors.As(err, &qErr) {
		t.Fatalf("expected *QueryError, got %v", err)
	}
	if len(d.Results()) != 0 {
		t.Errorf("results not cleared after failure")
	}
	if d.Filter() != DefaultFilter() {
		t.Errorf("filter = %+v, want reset to default", d.Filter())
	}
}

func TestDispatcher_NewResultsResetFilter(t *testing.T) {
	s := &mockSearcher{textFn: func(_ context.Context, _ string, _ int, _ string) ([]backend.ResultItem, error) {
		return rankedItems("a.jpg"), nil
	}}
	d := NewDispatcher(s)

	d.SetFilter(FilterState{ShowImages: false, ShowAudio: false})
	if _, err := d.Dispatch(ctx, Query{Modality: ModalityText, Text: "x", NumResults: 5}); err != nil {
		t.Fatal(err)
	}
	if d.Filter() != DefaultFilter() {
		t.Errorf("filter = %+v, want default after new results", d.Filter())
	}
}

func TestDispatcher_InvalidQueryNeverReachesSearcher(t *testing.T) {
	calls := 0
	s := &mockSearcher{textFn: func(_ context.Context, _ string, _ int, _ string) ([]backend.ResultItem, error) {
		calls++
		return nil, nil
	}}
	d := NewDispatcher(s)

	_, err := d.Dispatch(ctx, Query{Modality: ModalityText, Text: "", NumResults: 5})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if calls != 0 {
		t.Errorf("searcher called %d times for an invalid query", calls)
	}
}
