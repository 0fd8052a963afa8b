package ingest

import (
	"context"
	"log/slog"
	"sync"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// keyedMutex lazily allocates one mutex per key, so two sync/unsync
// calls for different data sources never contend.
type keyedMutex struct {
	locks sync.Map // string -> *sync.Mutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	value, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Scheduler drives single-source and batch-over-workspace sync/unsync
// for regular (file/URL) data sources, serializing concurrent
// operations on the same source so a double-click never races an
// Ingest against itself.
type Scheduler struct {
	repo     Repository
	ingestor Ingestor
	locks    keyedMutex
	logger   *slog.Logger
}

// NewScheduler wires a Repository and Ingestor into a Scheduler.
func NewScheduler(repo Repository, ingestor Ingestor, logger *slog.Logger) *Scheduler {
	return &Scheduler{repo: repo, ingestor: ingestor, logger: logger.With("component", "ingest.scheduler")}
}

// SyncOne ingests a single regular data source by ID, serialized per ID.
func (s *Scheduler) SyncOne(ctx context.Context, workspaceID, id string) (Result, error) {
	unlock := s.locks.lock(workspaceID + ":" + id)
	defer unlock()

	src, found, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return Result{}, apperrors.Wrap("internal", "failed to load data source", err)
	}
	if !found {
		return Result{}, apperrors.Wrap("not_found", "data source not found", nil)
	}
	return s.ingestor.Ingest(ctx, src)
}

// UnsyncOne removes a single regular data source's chunks and marks it unsynced.
func (s *Scheduler) UnsyncOne(ctx context.Context, workspaceID, id string) error {
	unlock := s.locks.lock(workspaceID + ":" + id)
	defer unlock()

	src, found, err := s.repo.Get(ctx, workspaceID, id)
	if err != nil {
		return apperrors.Wrap("internal", "failed to load data source", err)
	}
	if !found {
		return apperrors.Wrap("not_found", "data source not found", nil)
	}
	return s.ingestor.Unsync(ctx, src)
}

// SyncAllRegular ingests every unsynced regular data source in a
// workspace, continuing past individual failures and reporting them.
func (s *Scheduler) SyncAllRegular(ctx context.Context, workspaceID string) (BatchResult, error) {
	sources, err := s.repo.ListRegular(ctx, workspaceID, true)
	if err != nil {
		return BatchResult{}, apperrors.Wrap("internal", "failed to list data sources", err)
	}

	result := BatchResult{}
	for _, src := range sources {
		res, err := s.SyncOne(ctx, workspaceID, src.ID)
		if err != nil {
			s.logger.Warn("batch sync failed for source", "reference", src.Reference, "error", err)
			result.Failed = append(result.Failed, Failure{Reference: src.Reference, Error: err.Error()})
			continue
		}
		result.SyncedCount++
		result.TotalDocsAdded += res.ChunksAdded
	}
	return result, nil
}

// UnsyncAll removes chunks for every synced regular data source in a workspace.
func (s *Scheduler) UnsyncAll(ctx context.Context, workspaceID string) (BatchResult, error) {
	sources, err := s.repo.ListRegular(ctx, workspaceID, false)
	if err != nil {
		return BatchResult{}, apperrors.Wrap("internal", "failed to list data sources", err)
	}

	result := BatchResult{}
	for _, src := range sources {
		if !src.IsSynced {
			continue
		}
		if err := s.UnsyncOne(ctx, workspaceID, src.ID); err != nil {
			s.logger.Warn("batch unsync failed for source", "reference", src.Reference, "error", err)
			result.Failed = append(result.Failed, Failure{Reference: src.Reference, Error: err.Error()})
			continue
		}
		result.SyncedCount++
	}
	return result, nil
}
