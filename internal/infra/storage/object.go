package storage

import "io"
import "context"

// StoredObject describes a blob persisted through BlobStorage.
type StoredObject struct {
	Key      string
	Size     int64
	MimeType string
	ETag     string
}

// BlobStorage mirrors ingested DataSource content to an object store.
// It is optional: when unconfigured, the filesystem tree under
// DATA_DIRECTORY remains the source of truth and BlobStorage is an
// in-memory MemoryStorage.
type BlobStorage interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (StoredObject, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
