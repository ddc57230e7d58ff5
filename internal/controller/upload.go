package controller

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/kalambet/mmx/internal/backend"
)

// Ingestor abstracts the backend's ingest endpoint.
type Ingestor interface {
	IngestFile(ctx context.Context, filename string, content io.Reader, declaredType backend.FileType, collection, description string) (backend.IngestResult, error)
}

// Notifier receives external notifications about upload progress. Both hooks
// are optional on the consumer side; implementations must not block.
type Notifier interface {
	// ItemSucceeded fires immediately after each successful item, so
	// aggregate status can update incrementally.
	ItemSucceeded(item UploadItem)
	// BatchCompleted fires once after a batch in which at least one item
	// succeeded, covering cases where an incremental notification failed
	// to propagate.
	BatchCompleted(succeeded int)
}

// FeedRefresher re-fetches the recent-activity feed after a batch.
type FeedRefresher interface {
	Refresh(ctx context.Context) error
}

// UploadStatus is the lifecycle state of one queued file.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadSucceeded UploadStatus = "succeeded"
	UploadFailed    UploadStatus = "failed"
)

// UploadItem tracks one file through the ingest pipeline. DeclaredType is
// derived from the file's MIME type at enqueue time and never re-checked.
type UploadItem struct {
	ID           string
	Path         string
	Filename     string
	DeclaredType backend.FileType
	Status       UploadStatus
	Err          string
	Result       *backend.IngestResult
}

// Pipeline validates, queues, and sequentially submits files to the ingest
// endpoint. Items are processed one at a time in enqueue order; this bounds
// backend load and keeps progress reporting deterministic.
type Pipeline struct {
	ingest     Ingestor
	feed       FeedRefresher
	notifier   Notifier
	collection func() string
	logger     *slog.Logger

	mu    sync.Mutex
	items []*UploadItem
}

// NewPipeline creates a Pipeline. collection resolves the target collection
// name at batch start. feed and notifier may be nil, in which case the
// corresponding step is skipped.
func NewPipeline(ingest Ingestor, collection func() string, feed FeedRefresher, notifier Notifier) *Pipeline {
	return &Pipeline{
		ingest:     ingest,
		feed:       feed,
		notifier:   notifier,
		collection: collection,
		logger:     slog.Default(),
	}
}

// DetectMediaType sniffs the file's MIME type and maps it to a media type.
// Files that are neither image nor audio report ok=false.
func DetectMediaType(path string) (backend.FileType, bool) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", false
	}
	switch {
	case strings.HasPrefix(mtype.String(), "image/"):
		return backend.FileTypeImage, true
	case strings.HasPrefix(mtype.String(), "audio/"):
		return backend.FileTypeAudio, true
	}
	return "", false
}

// Enqueue appends the given files to the queue in input order. Files that are
// neither image nor audio are dropped silently and never enter the queue.
// Returns the accepted items.
func (p *Pipeline) Enqueue(paths []string) []UploadItem {
	var accepted []UploadItem
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, path := range paths {
		kind, ok := DetectMediaType(path)
		if !ok {
			p.logger.Debug("skipping unsupported file", "path", path)
			continue
		}
		item := &UploadItem{
			ID:           uuid.New().String(),
			Path:         path,
			Filename:     filepath.Base(path),
			DeclaredType: kind,
			Status:       UploadPending,
		}
		p.items = append(p.items, item)
		accepted = append(accepted, *item)
	}
	return accepted
}

// Dequeue removes an item by id. Items that are already processing or
// terminal are left untouched.
func (p *Pipeline) Dequeue(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, item := range p.items {
		if item.ID == id && item.Status == UploadPending {
			p.items = append(p.items[:i], p.items[i+1:]...)
			return
		}
	}
}

// Items returns a snapshot of the queue.
func (p *Pipeline) Items() []UploadItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]UploadItem, len(p.items))
	for i, item := range p.items {
		out[i] = *item
	}
	return out
}

// RunBatch processes every item that is Pending at the moment of the call,
// strictly sequentially in enqueue order: item N+1 is never submitted before
// item N's outcome is observed. A failed item is recorded and does not block
// its siblings. Items enqueued while the batch runs join the next run; an item
// dequeued after the snapshot is still submitted, and its lifecycle and
// notification payload follow the item captured by the batch. After
// the batch, the recent-activity feed is refreshed and, if at least one item
// succeeded, the final completion notification fires. Calling RunBatch with
// nothing Pending is a no-op.
func (p *Pipeline) RunBatch(ctx context.Context) {
	p.mu.Lock()
	var batch []*UploadItem
	for _, item := range p.items {
		if item.Status == UploadPending {
			batch = append(batch, item)
		}
	}
	collection := ""
	if p.collection != nil {
		collection = p.collection()
	}
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	succeeded := 0
	for _, item := range batch {
		p.setStatus(item, UploadUploading, "", nil)

		result, err := p.submit(ctx, item, collection)
		if err != nil {
			p.logger.Warn("upload failed", "file", item.Filename, "error", err)
			p.setStatus(item, UploadFailed, err.Error(), nil)
			continue
		}

		done := p.setStatus(item, UploadSucceeded, "", &result)
		succeeded++
		if p.notifier != nil {
			p.notifier.ItemSucceeded(done)
		}
	}

	if p.feed != nil {
		if err := p.feed.Refresh(ctx); err != nil {
			p.logger.Warn("refreshing recent activity failed", "error", err)
		}
	}
	if succeeded > 0 && p.notifier != nil {
		p.notifier.BatchCompleted(succeeded)
	}
}

func (p *Pipeline) submit(ctx context.Context, item *UploadItem, collection string) (backend.IngestResult, error) {
	f, err := os.Open(item.Path)
	if err != nil {
		return backend.IngestResult{}, err
	}
	defer f.Close()
	return p.ingest.IngestFile(ctx, item.Filename, f, item.DeclaredType, collection, "")
}

// setStatus mutates the batch's own item pointer, so the update and the
// returned copy stay valid even if the item was dequeued after the batch
// snapshot was taken.
func (p *Pipeline) setStatus(item *UploadItem, status UploadStatus, errMsg string, result *backend.IngestResult) UploadItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	item.Status = status
	item.Err = errMsg
	item.Result = result
	return *item
}
