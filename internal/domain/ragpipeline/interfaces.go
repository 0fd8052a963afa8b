package ragpipeline

import "context"

// PreferenceRepository resolves a user's preferred response language.
type PreferenceRepository interface {
	GetLanguage(ctx context.Context, userID int64) (string, bool, error)
}

// TrendingCache is a best-effort telemetry aid: it records how often a
// normalized question recurs per workspace. A cache miss or write
// failure must never affect the answer path.
type TrendingCache interface {
	RecordHit(ctx context.Context, workspaceID, normalizedQuery string)
}
