package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
)

// DataSourcePostgres persists DataSource rows.
type DataSourcePostgres struct {
	pool *pgxpool.Pool
}

// NewDataSourcePostgres constructs a Postgres-backed ingest.Repository.
func NewDataSourcePostgres(pool *pgxpool.Pool) *DataSourcePostgres {
	return &DataSourcePostgres{pool: pool}
}

func (r *DataSourcePostgres) Get(ctx context.Context, workspaceID, id string) (ingest.DataSource, bool, error) {
	return r.queryOne(ctx, `
		SELECT id, source_type, reference, path, workspace_id, owner_id, category, tags, size_mb, added_at, last_synced_at, is_synced
		FROM data_sources WHERE id = $1 AND workspace_id = $2 LIMIT 1
	`, id, workspaceID)
}

func (r *DataSourcePostgres) GetByReference(ctx context.Context, workspaceID, reference string) (ingest.DataSource, bool, error) {
	return r.queryOne(ctx, `
		SELECT id, source_type, reference, path, workspace_id, owner_id, category, tags, size_mb, added_at, last_synced_at, is_synced
		FROM data_sources WHERE reference = $1 AND workspace_id = $2 LIMIT 1
	`, reference, workspaceID)
}

func (r *DataSourcePostgres) ListRegular(ctx context.Context, workspaceID string, onlyUnsynced bool) ([]ingest.DataSource, error) {
	query := `
		SELECT id, source_type, reference, path, workspace_id, owner_id, category, tags, size_mb, added_at, last_synced_at, is_synced
		FROM data_sources WHERE workspace_id = $1`
	if onlyUnsynced {
		query += ` AND is_synced = false`
	}
	query += ` ORDER BY added_at DESC`
	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ingest.DataSource
	for rows.Next() {
		src, err := scanDataSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (r *DataSourcePostgres) Upsert(ctx context.Context, src ingest.DataSource) (ingest.DataSource, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO data_sources (id, source_type, reference, path, workspace_id, owner_id, category, tags, size_mb, added_at, last_synced_at, is_synced)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			path = EXCLUDED.path,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags,
			size_mb = EXCLUDED.size_mb,
			last_synced_at = EXCLUDED.last_synced_at,
			is_synced = EXCLUDED.is_synced
		RETURNING id, source_type, reference, path, workspace_id, owner_id, category, tags, size_mb, added_at, last_synced_at, is_synced
	`, src.ID, string(src.SourceType), src.Reference, src.Path, src.WorkspaceID, src.OwnerID, src.Category, src.Tags, src.SizeMB, src.AddedAt, src.LastSyncedAt, src.IsSynced)
	return scanDataSource(row)
}

func (r *DataSourcePostgres) MarkSynced(ctx context.Context, id string, synced bool, lastSyncedAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE data_sources SET is_synced = $1, last_synced_at = $2 WHERE id = $3`, synced, lastSyncedAt, id)
	return err
}

func (r *DataSourcePostgres) queryOne(ctx context.Context, query string, args ...any) (ingest.DataSource, bool, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return ingest.DataSource{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return ingest.DataSource{}, false, rows.Err()
	}
	src, err := scanDataSource(rows)
	if err != nil {
		return ingest.DataSource{}, false, err
	}
	return src, true, rows.Err()
}

func scanDataSource(row pgxRowScanner) (ingest.DataSource, error) {
	var src ingest.DataSource
	var sourceType string
	var added time.Time
	var lastSynced *time.Time
	if err := row.Scan(&src.ID, &sourceType, &src.Reference, &src.Path, &src.WorkspaceID, &src.OwnerID, &src.Category, &src.Tags, &src.SizeMB, &added, &lastSynced, &src.IsSynced); err != nil {
		return ingest.DataSource{}, err
	}
	src.SourceType = ingest.SourceType(sourceType)
	src.AddedAt = added.UTC()
	if lastSynced != nil {
		utc := lastSynced.UTC()
		src.LastSyncedAt = &utc
	}
	return src, nil
}

var _ ingest.Repository = (*DataSourcePostgres)(nil)
