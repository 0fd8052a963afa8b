package ingest

import "time"

// SourceType distinguishes how a DataSource's content was obtained.
type SourceType string

const (
	SourceFile         SourceType = "file"
	SourceURL          SourceType = "url"
	SourceExternalTask SourceType = "external_task"
)

// DataSource is a user-visible record pointing at ingestable content.
type DataSource struct {
	ID           string
	SourceType   SourceType
	Reference    string
	Path         string
	WorkspaceID  string
	OwnerID      int64
	Category     string
	Tags         []string
	SizeMB       float64
	AddedAt      time.Time
	LastSyncedAt *time.Time
	IsSynced     bool
}

// Document is raw loaded content ready to be split.
type Document struct {
	SourceReference string
	WorkspaceID     string
	Text            string
}

// ChunkCandidate is one piece produced by a Splitter, prior to
// embedding.
type ChunkCandidate struct {
	SourceReference string
	WorkspaceID     string
	Text            string
}

// Result summarizes one Ingest call.
type Result struct {
	ChunksAdded  int
	LastSyncedAt time.Time
}

// Failure records one item's error inside a batch sync/unsync.
type Failure struct {
	Reference string `json:"ref"`
	Error     string `json:"error"`
}

// BatchResult is returned by SyncScheduler's batch endpoints.
type BatchResult struct {
	SyncedCount    int       `json:"synced_count"`
	TotalDocsAdded int       `json:"total_docs_added"`
	Failed         []Failure `json:"failed"`
}
