package controller

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kalambet/mmx/internal/backend"
)

// Searcher abstracts the backend's similarity search operations.
type Searcher interface {
	SearchText(ctx context.Context, text string, numResults int, collection string) ([]backend.ResultItem, error)
	SearchMedia(ctx context.Context, kind backend.FileType, filename string, content io.Reader, numResults int, collection string) ([]backend.ResultItem, error)
}

// Modality selects how a query is expressed.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// ResultCountOptions is the fixed set of allowed requested-result counts.
var ResultCountOptions = []int{3, 5, 8, 10, 15, 20}

// Query is a transient value object describing one similarity search.
type Query struct {
	Modality   Modality
	Text       string
	FilePath   string
	NumResults int
	Collection string
}

// Validate checks the query's client-side preconditions.
func (q Query) Validate() error {
	switch q.Modality {
	case ModalityText:
		if strings.TrimSpace(q.Text) == "" {
			return &ValidationError{Field: "query", Reason: "text must not be empty"}
		}
	case ModalityImage, ModalityAudio:
		if q.FilePath == "" {
			return &ValidationError{Field: "query", Reason: "no file selected"}
		}
	default:
		return &ValidationError{Field: "modality", Reason: "must be text, image or audio"}
	}

	for _, n := range ResultCountOptions {
		if q.NumResults == n {
			return nil
		}
	}
	return &ValidationError{Field: "result count", Reason: "must be one of 3, 5, 8, 10, 15 or 20"}
}

// Dispatcher sends similarity queries and owns the result set of the last
// completed one. Exactly one dispatch is current at a time: every dispatch is
// tagged with a monotonically increasing sequence token, and only the
// response matching the latest token is ever applied. Stale outcomes are
// discarded without touching state.
type Dispatcher struct {
	search Searcher

	mu      sync.Mutex
	seq     uint64
	results []backend.ResultItem
	filter  FilterState
}

// NewDispatcher creates a Dispatcher with both filters enabled.
func NewDispatcher(search Searcher) *Dispatcher {
	return &Dispatcher{search: search, filter: DefaultFilter()}
}

// Dispatch runs the query and, if it is still the latest one when the
// response arrives, replaces the result set and resets the filter state.
// Superseded dispatches return ErrSuperseded. Any transport or
// application-level failure yields a *QueryError and clears prior results.
func (d *Dispatcher) Dispatch(ctx context.Context, q Query) ([]backend.ResultItem, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.seq++
	token := d.seq
	d.mu.Unlock()

	items, err := d.run(ctx, q)

	d.mu.Lock()
	defer d.mu.Unlock()
	if token != d.seq {
		return nil, ErrSuperseded
	}
	if err != nil {
		d.results = nil
		d.filter = DefaultFilter()
		return nil, &QueryError{Err: err}
	}
	d.results = items
	d.filter = DefaultFilter()
	return append([]backend.ResultItem(nil), items...), nil
}

func (d *Dispatcher) run(ctx context.Context, q Query) ([]backend.ResultItem, error) {
	if q.Modality == ModalityText {
		return d.search.SearchText(ctx, strings.TrimSpace(q.Text), q.NumResults, q.Collection)
	}

	f, err := os.Open(q.FilePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kind := backend.FileTypeImage
	if q.Modality == ModalityAudio {
		kind = backend.FileTypeAudio
	}
	return d.search.SearchMedia(ctx, kind, filepath.Base(q.FilePath), f, q.NumResults, q.Collection)
}

// Results returns a copy of the last completed query's result set.
func (d *Dispatcher) Results() []backend.ResultItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]backend.ResultItem(nil), d.results...)
}

// Filter returns the current filter state.
func (d *Dispatcher) Filter() FilterState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

// SetFilter updates the filter state. This is a synchronous, side-effect-free
// update; it never re-queries the backend.
func (d *Dispatcher) SetFilter(f FilterState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter = f
}

// Displayed derives the visible subset of the last result set under the
// current filter, preserving rank order.
func (d *Dispatcher) Displayed() []backend.ResultItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return FilterResults(d.results, d.filter)
}

// Counts reports per-type totals over the unfiltered result set.
func (d *Dispatcher) Counts() map[backend.FileType]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return CountByType(d.results)
}
