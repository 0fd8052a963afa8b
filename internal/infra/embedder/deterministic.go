package embedder

import (
	"context"
	"hash/fnv"

	"github.com/yanqian/ai-helloworld/internal/domain/retrieval"
)

// DeterministicEmbedder hashes text into a fixed-dimension vector,
// avoiding network calls. cmd/app's provideEmbedder falls back to it
// when the LLM client is nil or no embedding model is set; a missing
// API key outside local mode is a startup error, not a fallback case.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder constructs the embedder.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim <= 0 {
		dim = 32
	}
	return &DeterministicEmbedder{dim: dim}
}

func (e *DeterministicEmbedder) Dimension(_ context.Context) (int, error) {
	return e.dim, nil
}

func (e *DeterministicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, e.dim)
		hash := fnv.New64a()
		_, _ = hash.Write([]byte(text))
		seed := hash.Sum64()
		for j := 0; j < e.dim; j++ {
			seed = seed*1099511628211 + 1469598103934665603
			vector[j] = float32(seed%997) / 997.0
		}
		vectors[i] = vector
	}
	return vectors, nil
}

var _ retrieval.Embedder = (*DeterministicEmbedder)(nil)
