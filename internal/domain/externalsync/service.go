package externalsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// keyedMutex lazily allocates one mutex per key, so two sync/unsync
// calls for different external tasks never contend. Mirrors
// ingest.Scheduler's own keyed mutex: DataSource sync must be
// serialized per source regardless of whether the source is a regular
// upload or an external ticket.
type keyedMutex struct {
	locks sync.Map // string -> *sync.Mutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	value, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// TextWriter persists the canonical text representation of a synced
// task to durable storage and reports its size.
type TextWriter interface {
	Write(ctx context.Context, workspaceID, filename, content string) (path string, sizeMB float64, err error)
}

// Syncer pulls tasks from an external provider, writes their
// canonical text form, and ingests them into the workspace's vector
// store.
type Syncer interface {
	ListTeams(ctx context.Context, workspaceID string) ([]Team, error)
	ListSpaces(ctx context.Context, workspaceID, teamID string) ([]Space, error)
	ListLists(ctx context.Context, workspaceID, spaceID string) ([]List, error)
	ListTasks(ctx context.Context, workspaceID, listID string) ([]Task, error)
	SyncTask(ctx context.Context, workspaceID, taskID string, ownerID int64) (SyncResult, error)
	SyncList(ctx context.Context, workspaceID, listID string, ownerID int64) (BatchResult, error)
	UnsyncTask(ctx context.Context, workspaceID, taskID string) error
}

type syncer struct {
	provider    ProviderClient
	credentials CredentialStore
	writer      TextWriter
	repo        ingest.Repository
	ingestor    ingest.Ingestor
	locks       keyedMutex
	logger      *slog.Logger
}

// NewSyncer wires an external-ticket syncer against the ingestion
// pipeline.
func NewSyncer(provider ProviderClient, credentials CredentialStore, writer TextWriter, repo ingest.Repository, ingestor ingest.Ingestor, logger *slog.Logger) Syncer {
	return &syncer{
		provider:    provider,
		credentials: credentials,
		writer:      writer,
		repo:        repo,
		ingestor:    ingestor,
		logger:      logger.With("component", "externalsync.syncer"),
	}
}

func (s *syncer) token(ctx context.Context, workspaceID string) (string, error) {
	token, found, err := s.credentials.APIToken(ctx, workspaceID)
	if err != nil {
		return "", apperrors.Wrap("auth_error", "failed to load external credentials", err)
	}
	if !found || token == "" {
		return "", apperrors.Wrap("invalid_input", "external integration not connected for this workspace", nil)
	}
	return token, nil
}

func (s *syncer) ListTeams(ctx context.Context, workspaceID string) ([]Team, error) {
	token, err := s.token(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	teams, err := s.provider.ListTeams(ctx, token)
	if err != nil {
		return nil, apperrors.Wrap("upstream_unavailable", "failed to list teams", err)
	}
	return teams, nil
}

func (s *syncer) ListSpaces(ctx context.Context, workspaceID, teamID string) ([]Space, error) {
	token, err := s.token(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	spaces, err := s.provider.ListSpaces(ctx, token, teamID)
	if err != nil {
		return nil, apperrors.Wrap("upstream_unavailable", "failed to list spaces", err)
	}
	return spaces, nil
}

func (s *syncer) ListLists(ctx context.Context, workspaceID, spaceID string) ([]List, error) {
	token, err := s.token(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	lists, err := s.provider.ListLists(ctx, token, spaceID)
	if err != nil {
		return nil, apperrors.Wrap("upstream_unavailable", "failed to list lists", err)
	}
	return lists, nil
}

func (s *syncer) ListTasks(ctx context.Context, workspaceID, listID string) ([]Task, error) {
	token, err := s.token(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.provider.ListTasks(ctx, token, listID)
	if err != nil {
		return nil, apperrors.Wrap("upstream_unavailable", "failed to list tasks", err)
	}
	for i := range tasks {
		ds, found, err := s.repo.GetByReference(ctx, workspaceID, canonicalFilename(tasks[i].ID))
		if err == nil && found {
			tasks[i].IsSynced = ds.IsSynced
		}
	}
	return tasks, nil
}

// SyncTask fetches one task, writes its canonical text form, and
// ingests it, creating or refreshing the backing DataSource.
func (s *syncer) SyncTask(ctx context.Context, workspaceID, taskID string, ownerID int64) (SyncResult, error) {
	unlock := s.locks.lock(workspaceID + ":" + taskID)
	defer unlock()

	token, err := s.token(ctx, workspaceID)
	if err != nil {
		return SyncResult{}, err
	}
	task, err := s.provider.GetTask(ctx, token, taskID)
	if err != nil {
		return SyncResult{}, apperrors.Wrap("upstream_unavailable", "failed to fetch task", err)
	}

	filename := canonicalFilename(taskID)
	content := buildCanonicalText(taskID, task)
	path, sizeMB, err := s.writer.Write(ctx, workspaceID, filename, content)
	if err != nil {
		return SyncResult{}, apperrors.Wrap("storage_error", "failed to persist task text", err)
	}

	src, found, err := s.repo.GetByReference(ctx, workspaceID, filename)
	if err != nil {
		return SyncResult{}, apperrors.Wrap("storage_error", "failed to load data source", err)
	}
	if !found {
		src = ingest.DataSource{
			ID:          fmt.Sprintf("ext:%s:%s", workspaceID, taskID),
			SourceType:  ingest.SourceExternalTask,
			Reference:   filename,
			Path:        path,
			WorkspaceID: workspaceID,
			OwnerID:     ownerID,
			AddedAt:     time.Now(),
		}
	}
	src.Path = path
	src.SizeMB = sizeMB
	src.Category = task.Status
	src.Tags = task.Assignees
	src, err = s.repo.Upsert(ctx, src)
	if err != nil {
		return SyncResult{}, apperrors.Wrap("storage_error", "failed to save data source", err)
	}

	result, err := s.ingestor.Ingest(ctx, src)
	if err != nil {
		return SyncResult{}, err
	}

	return SyncResult{
		Status:       "synced",
		Filename:     filename,
		TaskID:       taskID,
		TaskName:     task.Name,
		ChunksAdded:  result.ChunksAdded,
		LastSyncedAt: result.LastSyncedAt,
	}, nil
}

// SyncList syncs every task under a list, collecting per-task
// failures instead of aborting the batch.
func (s *syncer) SyncList(ctx context.Context, workspaceID, listID string, ownerID int64) (BatchResult, error) {
	tasks, err := s.ListTasks(ctx, workspaceID, listID)
	if err != nil {
		return BatchResult{}, err
	}
	var result BatchResult
	for _, task := range tasks {
		synced, err := s.SyncTask(ctx, workspaceID, task.ID, ownerID)
		if err != nil {
			result.Failed = append(result.Failed, Failure{TaskID: task.ID, Error: err.Error()})
			continue
		}
		result.SyncedCount++
		result.TotalDocsAdded += synced.ChunksAdded
	}
	return result, nil
}

func (s *syncer) UnsyncTask(ctx context.Context, workspaceID, taskID string) error {
	unlock := s.locks.lock(workspaceID + ":" + taskID)
	defer unlock()

	filename := canonicalFilename(taskID)
	src, found, err := s.repo.GetByReference(ctx, workspaceID, filename)
	if err != nil {
		return apperrors.Wrap("storage_error", "failed to load data source", err)
	}
	if !found {
		return apperrors.Wrap("not_found", "task is not synced", nil)
	}
	return s.ingestor.Unsync(ctx, src)
}

// buildCanonicalText composes the flat textual representation that
// gets embedded: task id, issue title, problem body, and a solution
// field pulled from the provider's custom fields.
func buildCanonicalText(taskID string, task Task) string {
	lines := []string{
		"Task ID: " + taskID,
		"Issue: " + task.Name,
		"Problem: " + task.Description,
		"Solution:",
		solutionOrDefault(task),
	}
	return strings.Join(lines, "\n")
}

func solutionOrDefault(task Task) string {
	if strings.TrimSpace(task.Solution) == "" {
		return "No solution provided."
	}
	return task.Solution
}
