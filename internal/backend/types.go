package backend

import "time"

// FileType classifies indexed media.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeAudio FileType = "audio"
)

// Collection describes one named index on the backend. ItemCount and
// LastUpdated are maintained server-side and refreshed by re-fetching the
// collection list, never computed locally.
type Collection struct {
	Name        string    `json:"db_name"`
	ItemCount   int       `json:"ntotal"`
	LastUpdated time.Time `json:"last_updated"`
}

// ResultItem is one ranked match returned by a similarity search. Rank and
// score are assigned by the backend and are immutable once received.
type ResultItem struct {
	Filename        string   `json:"filename"`
	FileType        FileType `json:"file_type"`
	SimilarityScore float64  `json:"similarity_score"`
	Rank            int      `json:"rank"`
	SourcePath      string   `json:"file_path"`
}

// IngestResult is the backend's confirmation for a single ingested file.
type IngestResult struct {
	Filename string `json:"filename,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	Status   string `json:"status,omitempty"`
}

// UploadRecord is one entry in the recent-activity feed.
type UploadRecord struct {
	Filename  string    `json:"filename"`
	Type      FileType  `json:"type"`
	FileURL   string    `json:"file_url"`
	ModelUsed string    `json:"model_used"`
	AddedAt   time.Time `json:"added_at"`
}

// StatusInfo is the backend's system status report.
type StatusInfo struct {
	IndexedItems      int  `json:"indexed_items"`
	CrossModalEnabled bool `json:"cross_modal_enabled"`
}
