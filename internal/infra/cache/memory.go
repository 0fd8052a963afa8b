package cache

import (
	"context"
	"sync"

	"github.com/yanqian/ai-helloworld/internal/domain/ragpipeline"
)

// MemoryTrendingCache is an in-memory ragpipeline.TrendingCache for tests/dev.
type MemoryTrendingCache struct {
	mu     sync.Mutex
	counts map[string]map[string]int64
}

// NewMemoryTrendingCache constructs a process-memory trending cache.
func NewMemoryTrendingCache() *MemoryTrendingCache {
	return &MemoryTrendingCache{counts: make(map[string]map[string]int64)}
}

func (c *MemoryTrendingCache) RecordHit(_ context.Context, workspaceID, normalizedQuery string) {
	if normalizedQuery == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	workspace, ok := c.counts[workspaceID]
	if !ok {
		workspace = make(map[string]int64)
		c.counts[workspaceID] = workspace
	}
	workspace[normalizedQuery]++
}

// Count returns the recorded hit count, used by tests.
func (c *MemoryTrendingCache) Count(workspaceID, normalizedQuery string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[workspaceID][normalizedQuery]
}

var _ ragpipeline.TrendingCache = (*MemoryTrendingCache)(nil)
