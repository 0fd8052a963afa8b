package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/ragpipeline"
)

const languagePreferenceKey = "language"

// PreferencePostgres persists per-user key/value preferences.
type PreferencePostgres struct {
	pool *pgxpool.Pool
}

// NewPreferencePostgres constructs a Postgres-backed ragpipeline.PreferenceRepository.
func NewPreferencePostgres(pool *pgxpool.Pool) *PreferencePostgres {
	return &PreferencePostgres{pool: pool}
}

func (r *PreferencePostgres) GetLanguage(ctx context.Context, userID int64) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx, `
		SELECT value FROM user_preferences WHERE user_id = $1 AND preference = $2
	`, userID, languagePreferenceKey).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SetLanguage upserts the user's preferred response language.
func (r *PreferencePostgres) SetLanguage(ctx context.Context, userID int64, language string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_preferences (user_id, preference, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, preference) DO UPDATE SET value = EXCLUDED.value
	`, userID, languagePreferenceKey, language)
	return err
}

var _ ragpipeline.PreferenceRepository = (*PreferencePostgres)(nil)
