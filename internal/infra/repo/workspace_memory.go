package repo

import (
	"context"
	"sync"

	"github.com/yanqian/ai-helloworld/internal/domain/chat"
)

// WorkspaceMemory is an in-memory CurrentWorkspace for tests/dev; one
// workspace ID per user, settable directly for fixtures.
type WorkspaceMemory struct {
	mu      sync.RWMutex
	current map[int64]string
}

// NewWorkspaceMemory constructs an empty in-memory workspace resolver.
func NewWorkspaceMemory() *WorkspaceMemory {
	return &WorkspaceMemory{current: make(map[int64]string)}
}

// Set assigns userID's current workspace, used by fixtures and the
// workspace-switch endpoint.
func (w *WorkspaceMemory) Set(userID int64, workspaceID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current[userID] = workspaceID
}

func (w *WorkspaceMemory) CurrentWorkspaceID(_ context.Context, userID int64) (string, bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	workspaceID, ok := w.current[userID]
	return workspaceID, ok && workspaceID != "", nil
}

var _ chat.CurrentWorkspace = (*WorkspaceMemory)(nil)
