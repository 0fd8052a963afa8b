package repo

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
)

// DataSourceMemory is an in-memory ingest.Repository for tests/dev.
type DataSourceMemory struct {
	mu      sync.RWMutex
	sources map[string]ingest.DataSource
}

// NewDataSourceMemory constructs an empty in-memory data source store.
func NewDataSourceMemory() *DataSourceMemory {
	return &DataSourceMemory{sources: make(map[string]ingest.DataSource)}
}

func (m *DataSourceMemory) Get(_ context.Context, workspaceID, id string) (ingest.DataSource, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[id]
	if !ok || src.WorkspaceID != workspaceID {
		return ingest.DataSource{}, false, nil
	}
	return src, true, nil
}

func (m *DataSourceMemory) GetByReference(_ context.Context, workspaceID, reference string) (ingest.DataSource, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, src := range m.sources {
		if src.WorkspaceID == workspaceID && src.Reference == reference {
			return src, true, nil
		}
	}
	return ingest.DataSource{}, false, nil
}

func (m *DataSourceMemory) ListRegular(_ context.Context, workspaceID string, onlyUnsynced bool) ([]ingest.DataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ingest.DataSource
	for _, src := range m.sources {
		if src.WorkspaceID != workspaceID {
			continue
		}
		if onlyUnsynced && src.IsSynced {
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

func (m *DataSourceMemory) Upsert(_ context.Context, src ingest.DataSource) (ingest.DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[src.ID] = src
	return src, nil
}

func (m *DataSourceMemory) MarkSynced(_ context.Context, id string, synced bool, lastSyncedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[id]
	if !ok {
		return nil
	}
	src.IsSynced = synced
	src.LastSyncedAt = lastSyncedAt
	m.sources[id] = src
	return nil
}

var _ ingest.Repository = (*DataSourceMemory)(nil)
