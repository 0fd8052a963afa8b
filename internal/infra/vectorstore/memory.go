package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/yanqian/ai-helloworld/internal/domain/retrieval"
)

// MemoryStore is a brute-force cosine-similarity VectorStore, used
// when no Postgres DSN is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]entry
}

type entry struct {
	chunk  retrieval.Chunk
	vector []float32
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]entry)}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, _ int) error {
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, chunks []retrieval.Chunk, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		s.chunks[c.ID] = entry{chunk: c, vector: vectors[i]}
	}
	return nil
}

func (s *MemoryStore) SearchWithScore(_ context.Context, vector []float32, k int, filter retrieval.Filter) ([]retrieval.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refSet map[string]struct{}
	if len(filter.SourceReferences) > 0 {
		refSet = make(map[string]struct{}, len(filter.SourceReferences))
		for _, r := range filter.SourceReferences {
			refSet[r] = struct{}{}
		}
	}

	var hits []retrieval.ScoredChunk
	for _, e := range s.chunks {
		if e.chunk.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if refSet != nil {
			if _, ok := refSet[e.chunk.SourceReference]; !ok {
				continue
			}
		}
		hits = append(hits, retrieval.ScoredChunk{Chunk: e.chunk, Score: cosineSimilarity(vector, e.vector)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *MemoryStore) DeleteBySource(_ context.Context, workspaceID, sourceReference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.chunks {
		if e.chunk.WorkspaceID == workspaceID && e.chunk.SourceReference == sourceReference {
			delete(s.chunks, id)
		}
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string]entry)
	return nil
}

var _ retrieval.VectorStore = (*MemoryStore)(nil)

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
