package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ai-helloworld/internal/domain/ragpipeline"
)

// ValkeyTrendingCache records how often a normalized question recurs
// per workspace using a sorted set, best-effort.
type ValkeyTrendingCache struct {
	client valkey.Client
	prefix string
	logger *slog.Logger
}

// NewValkeyTrendingCache constructs a ragpipeline.TrendingCache backed by Valkey.
func NewValkeyTrendingCache(client valkey.Client, prefix string, logger *slog.Logger) *ValkeyTrendingCache {
	if prefix == "" {
		prefix = "trending"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ValkeyTrendingCache{client: client, prefix: prefix, logger: logger.With("component", "valkey_trending_cache")}
}

func (c *ValkeyTrendingCache) RecordHit(ctx context.Context, workspaceID, normalizedQuery string) {
	if normalizedQuery == "" {
		return
	}
	cmd := c.client.B().Zincrby().Key(c.trendingKey(workspaceID)).Increment(1).Member(normalizedQuery).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		c.logger.Warn("record trending hit failed", "workspace_id", workspaceID, "error", err)
	}
}

func (c *ValkeyTrendingCache) trendingKey(workspaceID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, workspaceID)
}

var _ ragpipeline.TrendingCache = (*ValkeyTrendingCache)(nil)
