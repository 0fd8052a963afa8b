// Package vectorstore implements retrieval.VectorStore against
// Postgres with the pgvector extension, and an in-memory fallback for
// local development or when no DSN is configured.
package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/ai-helloworld/internal/domain/retrieval"
)

// PgVectorStore persists chunks in a single table with a pgvector
// column and searches it by cosine distance (`<=>`), scoring each hit
// as 1/(1+distance).
type PgVectorStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPgVectorStore constructs the store. table defaults to "chunks".
func NewPgVectorStore(pool *pgxpool.Pool, table string) *PgVectorStore {
	if table == "" {
		table = "chunks"
	}
	return &PgVectorStore{pool: pool, table: table}
}

func (s *PgVectorStore) EnsureCollection(ctx context.Context, dim int) error {
	_, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		return err
	}
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id text PRIMARY KEY,
			source_reference text NOT NULL,
			workspace_id text NOT NULL,
			content text NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)
	`, s.table, dim)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return err
	}
	indexName := s.table + "_workspace_idx"
	createIndex := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (workspace_id)`, indexName, s.table)
	_, err = s.pool.Exec(ctx, createIndex)
	return err
}

func (s *PgVectorStore) Upsert(ctx context.Context, chunks []retrieval.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vectorstore: chunk/vector count mismatch")
	}
	batch := &pgx.Batch{}
	insert := fmt.Sprintf(`
		INSERT INTO %s (id, source_reference, workspace_id, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding
	`, s.table)
	for i, c := range chunks {
		batch.Queue(insert, c.ID, c.SourceReference, c.WorkspaceID, c.Text, pgvector.NewVector(vectors[i]))
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *PgVectorStore) SearchWithScore(ctx context.Context, vector []float32, k int, filter retrieval.Filter) ([]retrieval.ScoredChunk, error) {
	query := fmt.Sprintf(`
		SELECT id, source_reference, workspace_id, content,
			(1.0 / (1.0 + (embedding <=> $1))) AS score
		FROM %s
		WHERE workspace_id = $2
	`, s.table)
	args := []any{pgvector.NewVector(vector), filter.WorkspaceID}
	argPos := 3
	if len(filter.SourceReferences) > 0 {
		query += ` AND source_reference = ANY($` + strconv.Itoa(argPos) + `)`
		args = append(args, filter.SourceReferences)
		argPos++
	}
	query += fmt.Sprintf(` ORDER BY (embedding <=> $1) ASC LIMIT $%d`, argPos)
	args = append(args, k)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []retrieval.ScoredChunk
	for rows.Next() {
		var chunk retrieval.Chunk
		var score float64
		if err := rows.Scan(&chunk.ID, &chunk.SourceReference, &chunk.WorkspaceID, &chunk.Text, &score); err != nil {
			return nil, err
		}
		results = append(results, retrieval.ScoredChunk{Chunk: chunk, Score: score})
	}
	return results, rows.Err()
}

func (s *PgVectorStore) DeleteBySource(ctx context.Context, workspaceID, sourceReference string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE workspace_id = $1 AND source_reference = $2`, s.table)
	_, err := s.pool.Exec(ctx, query, workspaceID, sourceReference)
	return err
}

func (s *PgVectorStore) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, s.table))
	return err
}

var _ retrieval.VectorStore = (*PgVectorStore)(nil)
