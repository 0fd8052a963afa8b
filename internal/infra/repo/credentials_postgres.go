package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/externalsync"
)

const clickupProvider = "clickup"

// CredentialsPostgres resolves workspace-scoped external integration API tokens.
type CredentialsPostgres struct {
	pool *pgxpool.Pool
}

// NewCredentialsPostgres constructs a Postgres-backed externalsync.CredentialStore.
func NewCredentialsPostgres(pool *pgxpool.Pool) *CredentialsPostgres {
	return &CredentialsPostgres{pool: pool}
}

func (r *CredentialsPostgres) APIToken(ctx context.Context, workspaceID string) (string, bool, error) {
	var token string
	err := r.pool.QueryRow(ctx, `
		SELECT api_token FROM workspace_integration_credentials
		WHERE workspace_id = $1 AND provider = $2
	`, workspaceID, clickupProvider).Scan(&token)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return token, true, nil
}

// SetAPIToken upserts the workspace's ClickUp API token, used by the integration-connect endpoint.
func (r *CredentialsPostgres) SetAPIToken(ctx context.Context, workspaceID, token string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO workspace_integration_credentials (workspace_id, provider, api_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, provider) DO UPDATE SET api_token = EXCLUDED.api_token
	`, workspaceID, clickupProvider, token)
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

var _ externalsync.CredentialStore = (*CredentialsPostgres)(nil)
