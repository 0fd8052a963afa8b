package externalsync

import (
	"context"
	"log/slog"
)

// JobQueue enqueues background sync jobs so a batch sync request can
// return immediately instead of blocking on every task in a list.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

const syncListJobName = "externalsync.sync_list"

// Scheduler runs SyncList jobs either synchronously or through a
// JobQueue, depending on what the caller needs.
type Scheduler struct {
	syncer Syncer
	queue  JobQueue
	logger *slog.Logger
}

// NewScheduler wires a background sync scheduler around a Syncer and
// an enqueue-capable job queue.
func NewScheduler(syncer Syncer, queue JobQueue, logger *slog.Logger) *Scheduler {
	return &Scheduler{syncer: syncer, queue: queue, logger: logger.With("component", "externalsync.scheduler")}
}

// EnqueueSyncList schedules a list sync to run in the background and
// returns without waiting for it to finish.
func (s *Scheduler) EnqueueSyncList(ctx context.Context, workspaceID, listID string, ownerID int64) error {
	return s.queue.Enqueue(ctx, syncListJobName, map[string]any{
		"workspace_id": workspaceID,
		"list_id":      listID,
		"owner_id":     ownerID,
	})
}

// RunJob executes one dequeued job. Registered as the queue's handler.
func (s *Scheduler) RunJob(ctx context.Context, name string, payload map[string]any) {
	if name != syncListJobName {
		return
	}
	workspaceID, _ := payload["workspace_id"].(string)
	listID, _ := payload["list_id"].(string)
	ownerID, _ := toInt64(payload["owner_id"])
	result, err := s.syncer.SyncList(ctx, workspaceID, listID, ownerID)
	if err != nil {
		s.logger.Warn("background list sync failed", "workspace_id", workspaceID, "list_id", listID, "error", err)
		return
	}
	s.logger.Info("background list sync complete", "workspace_id", workspaceID, "list_id", listID,
		"synced_count", result.SyncedCount, "failed_count", len(result.Failed))
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
