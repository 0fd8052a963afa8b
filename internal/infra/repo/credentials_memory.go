package repo

import (
	"context"
	"sync"

	"github.com/yanqian/ai-helloworld/internal/domain/externalsync"
)

// CredentialsMemory is an in-memory externalsync.CredentialStore for tests/dev.
type CredentialsMemory struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewCredentialsMemory constructs an empty in-memory credential store.
func NewCredentialsMemory() *CredentialsMemory {
	return &CredentialsMemory{tokens: make(map[string]string)}
}

func (m *CredentialsMemory) APIToken(_ context.Context, workspaceID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[workspaceID]
	return token, ok, nil
}

// SetAPIToken stores the workspace's ClickUp API token, used by the integration-connect endpoint.
func (m *CredentialsMemory) SetAPIToken(_ context.Context, workspaceID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[workspaceID] = token
	return nil
}

var _ externalsync.CredentialStore = (*CredentialsMemory)(nil)
