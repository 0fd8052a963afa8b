package retrieval

import "context"

// Embedder turns text into fixed-dimension vectors. Implementations must
// be safe for concurrent use.
type Embedder interface {
	Dimension(ctx context.Context) (int, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the persisted, filterable nearest-neighbor index behind
// retrieval. Every method is expected to be timeout-bounded by the
// caller's context.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	SearchWithScore(ctx context.Context, vector []float32, k int, filter Filter) ([]ScoredChunk, error)
	DeleteBySource(ctx context.Context, workspaceID, sourceReference string) error
	Reset(ctx context.Context) error
}

// Chat generates an answer from a prompt. Implementations must honor
// ctx cancellation and the requested temperature.
type Chat interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// Translator detects a text's language and translates between
// languages. Callers must fall back to the original text when either
// method errors.
type Translator interface {
	Detect(ctx context.Context, text string) (string, error)
	Translate(ctx context.Context, text, from, to string) (string, error)
}
