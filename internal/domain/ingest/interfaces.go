package ingest

import (
	"context"
	"time"
)

// Splitter turns a loaded Document into embeddable ChunkCandidates,
// following the four ordered rules for markdown, `_docs.txt`, external
// task exports, and default ticket text.
type Splitter interface {
	Split(doc Document) []ChunkCandidate
}

// Loader fetches the raw content behind a DataSource reference. The
// variant chosen depends on the reference's source type / extension.
type Loader interface {
	Load(ctx context.Context, src DataSource) (Document, error)
}

// Repository persists DataSource rows.
type Repository interface {
	Get(ctx context.Context, workspaceID, id string) (DataSource, bool, error)
	GetByReference(ctx context.Context, workspaceID, reference string) (DataSource, bool, error)
	ListRegular(ctx context.Context, workspaceID string, onlyUnsynced bool) ([]DataSource, error)
	Upsert(ctx context.Context, src DataSource) (DataSource, error)
	MarkSynced(ctx context.Context, id string, syncedAt bool, lastSyncedAt *time.Time) error
}
