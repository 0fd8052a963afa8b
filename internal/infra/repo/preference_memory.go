package repo

import (
	"context"
	"sync"

	"github.com/yanqian/ai-helloworld/internal/domain/ragpipeline"
)

// PreferenceMemory is an in-memory ragpipeline.PreferenceRepository for tests/dev.
type PreferenceMemory struct {
	mu        sync.RWMutex
	languages map[int64]string
}

// NewPreferenceMemory constructs an empty in-memory preference store.
func NewPreferenceMemory() *PreferenceMemory {
	return &PreferenceMemory{languages: make(map[int64]string)}
}

func (m *PreferenceMemory) GetLanguage(_ context.Context, userID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.languages[userID]
	return value, ok, nil
}

// SetLanguage stores the user's preferred response language.
func (m *PreferenceMemory) SetLanguage(_ context.Context, userID int64, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.languages[userID] = language
	return nil
}

var _ ragpipeline.PreferenceRepository = (*PreferenceMemory)(nil)
