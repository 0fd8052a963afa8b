// Package repo holds the Postgres- and memory-backed repository
// implementations for the entities introduced by the chat/ingest/
// externalsync/widget domains: workspaces, conversations, messages,
// data sources, bots, chat sessions, and external credentials.
package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/chat"
)

// WorkspacePostgres resolves a user's current workspace from the
// users table's current_workspace_id column.
type WorkspacePostgres struct {
	pool *pgxpool.Pool
}

// NewWorkspacePostgres constructs a Postgres-backed CurrentWorkspace.
func NewWorkspacePostgres(pool *pgxpool.Pool) *WorkspacePostgres {
	return &WorkspacePostgres{pool: pool}
}

func (w *WorkspacePostgres) CurrentWorkspaceID(ctx context.Context, userID int64) (string, bool, error) {
	var workspaceID *string
	err := w.pool.QueryRow(ctx, `SELECT current_workspace_id FROM users WHERE id = $1`, userID).Scan(&workspaceID)
	if err != nil {
		return "", false, err
	}
	if workspaceID == nil || *workspaceID == "" {
		return "", false, nil
	}
	return *workspaceID, true, nil
}

var _ chat.CurrentWorkspace = (*WorkspacePostgres)(nil)
