package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/retrieval"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// Ingestor loads a DataSource, splits it, embeds the pieces, and
// upserts them into the vector store.
type Ingestor interface {
	Ingest(ctx context.Context, src DataSource) (Result, error)
	Unsync(ctx context.Context, src DataSource) error
}

type ingestor struct {
	loader   Loader
	splitter Splitter
	embedder retrieval.Embedder
	store    retrieval.VectorStore
	repo     Repository
	logger   *slog.Logger
}

// NewIngestor wires the loader/splitter/embedder/store chain into one
// Ingestor.
func NewIngestor(loader Loader, splitter Splitter, embedder retrieval.Embedder, store retrieval.VectorStore, repo Repository, logger *slog.Logger) Ingestor {
	return &ingestor{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		repo:     repo,
		logger:   logger.With("component", "ingest.ingestor"),
	}
}

func (s *ingestor) Ingest(ctx context.Context, src DataSource) (Result, error) {
	doc, err := s.loader.Load(ctx, src)
	if err != nil {
		return Result{}, apperrors.Wrap("storage_error", "failed to load data source", err)
	}

	candidates := s.splitter.Split(doc)
	if len(candidates) == 0 {
		return Result{}, apperrors.Wrap("invalid_input", "document produced no chunks", nil)
	}

	// Re-ingesting an already-synced source removes stale chunks first,
	// so the upsert below never leaves duplicates behind.
	if src.IsSynced {
		if err := s.store.DeleteBySource(ctx, src.WorkspaceID, src.Reference); err != nil {
			s.logger.Warn("failed to clear existing chunks before re-ingest", "reference", src.Reference, "error", err)
		}
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return Result{}, apperrors.Wrap("embedding_error", "failed to embed chunks", err)
	}
	if len(vectors) != len(candidates) {
		return Result{}, apperrors.Wrap("embedding_error", "embedder returned a mismatched vector count", nil)
	}

	chunks := make([]retrieval.Chunk, len(candidates))
	for i, c := range candidates {
		chunks[i] = retrieval.Chunk{
			ID:              fmt.Sprintf("%s:%d", src.Reference, i),
			SourceReference: c.SourceReference,
			WorkspaceID:     c.WorkspaceID,
			Text:            c.Text,
		}
	}
	if err := s.store.Upsert(ctx, chunks, vectors); err != nil {
		return Result{}, apperrors.Wrap("storage_error", "failed to upsert chunks", err)
	}

	now := time.Now()
	if err := s.repo.MarkSynced(ctx, src.ID, true, &now); err != nil {
		s.logger.Error("failed to persist sync state", "data_source_id", src.ID, "error", err)
	}

	return Result{ChunksAdded: len(chunks), LastSyncedAt: now}, nil
}

func (s *ingestor) Unsync(ctx context.Context, src DataSource) error {
	if err := s.store.DeleteBySource(ctx, src.WorkspaceID, src.Reference); err != nil {
		return apperrors.Wrap("storage_error", "failed to delete chunks", err)
	}
	if err := s.repo.MarkSynced(ctx, src.ID, false, nil); err != nil {
		return apperrors.Wrap("storage_error", "failed to persist unsync state", err)
	}
	return nil
}
