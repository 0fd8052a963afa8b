// Package storage holds the filesystem and object-storage adapters
// backing DataSource persistence and the ingest Loader.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// FileLoader reads DataSource content from the local on-disk tree
// (<data>/workspaces/<workspace_id>/<reference>) or, for URL sources,
// over HTTP with a bounded timeout.
type FileLoader struct {
	DataDir    string
	HTTPClient *http.Client
}

// NewFileLoader constructs a Loader rooted at dataDir.
func NewFileLoader(dataDir string) *FileLoader {
	return &FileLoader{
		DataDir:    dataDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (l *FileLoader) Load(ctx context.Context, src ingest.DataSource) (ingest.Document, error) {
	switch src.SourceType {
	case ingest.SourceURL:
		return l.loadURL(ctx, src)
	default:
		return l.loadFile(src)
	}
}

func (l *FileLoader) loadFile(src ingest.DataSource) (ingest.Document, error) {
	path := src.Path
	if path == "" {
		path = fmt.Sprintf("%s/workspaces/%s/%s", l.DataDir, src.WorkspaceID, src.Reference)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.Document{}, apperrors.Wrap("not_found", "data source content not found", err)
	}
	return ingest.Document{
		SourceReference: src.Reference,
		WorkspaceID:     src.WorkspaceID,
		Text:            string(data),
	}, nil
}

func (l *FileLoader) loadURL(ctx context.Context, src ingest.DataSource) (ingest.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Path, nil)
	if err != nil {
		return ingest.Document{}, apperrors.Wrap("invalid_input", "invalid url", err)
	}
	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return ingest.Document{}, apperrors.Wrap("upstream_unavailable", "failed to fetch url", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return ingest.Document{}, apperrors.Wrap("upstream_unavailable", fmt.Sprintf("url fetch returned status %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ingest.Document{}, apperrors.Wrap("upstream_unavailable", "failed to read url body", err)
	}
	return ingest.Document{
		SourceReference: src.Reference,
		WorkspaceID:     src.WorkspaceID,
		Text:            string(body),
	}, nil
}
