package controller

import (
	"context"
	"sync"

	"github.com/kalambet/mmx/internal/backend"
)

// ActivityFetcher abstracts the backend's recent-uploads endpoint.
type ActivityFetcher interface {
	RecentUploads(ctx context.Context) ([]backend.UploadRecord, error)
}

// displayLimit caps how many recent uploads are shown; the true total is
// still recorded for the overflow indicator.
const displayLimit = 12

// Feed holds a short pull-based history of recently ingested items. There is
// no local caching across refreshes; each call replaces the full list.
type Feed struct {
	fetch ActivityFetcher

	mu      sync.Mutex
	records []backend.UploadRecord
}

// NewFeed creates a Feed backed by the given fetcher.
func NewFeed(fetch ActivityFetcher) *Feed {
	return &Feed{fetch: fetch}
}

// Refresh re-fetches the recent-uploads list. On transport failure the list
// becomes empty and a *FetchError is returned as an advisory.
func (f *Feed) Refresh(ctx context.Context) error {
	records, err := f.fetch.RecentUploads(ctx)
	if err != nil {
		records = nil
	}

	f.mu.Lock()
	f.records = records
	f.mu.Unlock()

	if err != nil {
		return &FetchError{Op: "fetching recent uploads", Err: err}
	}
	return nil
}

// Records returns the displayed view: at most the first 12 records.
func (f *Feed) Records() []backend.UploadRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.records)
	if n > displayLimit {
		n = displayLimit
	}
	return append([]backend.UploadRecord(nil), f.records[:n]...)
}

// Total reports how many records the backend returned on the last refresh,
// including those beyond the display cap.
func (f *Feed) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}
