package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// FileTextWriter persists canonical text (e.g. a synced external
// ticket) under <dataDir>/workspaces/<workspace_id>/<filename>, the
// same layout FileLoader reads back from.
type FileTextWriter struct {
	DataDir string
}

// NewFileTextWriter constructs a TextWriter rooted at dataDir.
func NewFileTextWriter(dataDir string) *FileTextWriter {
	return &FileTextWriter{DataDir: dataDir}
}

func (w *FileTextWriter) Write(ctx context.Context, workspaceID, filename, content string) (string, float64, error) {
	dir := fmt.Sprintf("%s/workspaces/%s", w.DataDir, workspaceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, apperrors.Wrap("storage_error", "failed to create workspace directory", err)
	}
	path := fmt.Sprintf("%s/%s", dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", 0, apperrors.Wrap("storage_error", "failed to write data source file", err)
	}
	sizeMB := float64(len(content)) / (1024 * 1024)
	return path, sizeMB, nil
}

// MirroringTextWriter writes to the on-disk workspace tree as the
// source of truth, then best-effort mirrors the same bytes to a
// BlobStorage (R2/MinIO when configured, an in-memory MemoryStorage
// otherwise). A mirror failure is logged, never returned: the
// filesystem write already succeeded and remains authoritative.
type MirroringTextWriter struct {
	Primary *FileTextWriter
	Mirror  BlobStorage
	Logger  *slog.Logger
}

// NewMirroringTextWriter wraps primary with a best-effort blob mirror.
func NewMirroringTextWriter(primary *FileTextWriter, mirror BlobStorage, logger *slog.Logger) *MirroringTextWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirroringTextWriter{Primary: primary, Mirror: mirror, Logger: logger.With("component", "storage.mirroring_text_writer")}
}

func (w *MirroringTextWriter) Write(ctx context.Context, workspaceID, filename, content string) (string, float64, error) {
	path, sizeMB, err := w.Primary.Write(ctx, workspaceID, filename, content)
	if err != nil {
		return "", 0, err
	}
	if w.Mirror != nil {
		key := fmt.Sprintf("workspaces/%s/%s", workspaceID, filename)
		if _, mirrorErr := w.Mirror.Put(ctx, key, []byte(content), "text/plain"); mirrorErr != nil {
			w.Logger.Warn("blob mirror write failed", "key", key, "error", mirrorErr)
		}
	}
	return path, sizeMB, nil
}
