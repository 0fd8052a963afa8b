package retrieval

import "time"

// Chunk is a single embeddable unit of text produced by a Splitter and
// persisted by a VectorStore.
type Chunk struct {
	ID               string
	SourceReference  string
	WorkspaceID      string
	Text             string
}

// Filter narrows a vector search to a tenant and, optionally, specific
// source references.
type Filter struct {
	WorkspaceID      string
	SourceReferences []string
}

// ScoredChunk is a VectorStore search hit. Score follows "higher is
// better" semantics regardless of the underlying distance metric.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// RetrievedDoc is the telemetry-facing shape of a search hit, kept
// separate from ScoredChunk so logging can evolve without touching the
// store contract.
type RetrievedDoc struct {
	SourceReference string  `json:"source_reference"`
	WorkspaceID     string  `json:"workspace_id"`
	Score           float64 `json:"score"`
	Snippet         string  `json:"snippet"`
}

// ChatMessage is one turn in a prompt sent to an LLM.
type ChatMessage struct {
	Role    string
	Content string
}

// GenerationRequest bundles everything Chat needs to produce an answer.
type GenerationRequest struct {
	Messages    []ChatMessage
	Temperature float32
	Model       string
}

// GenerationResult carries the answer plus whatever usage accounting the
// backend reports.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Metrics records one RagPipeline run for InteractionLogger consumption.
type Metrics struct {
	RetrievalLatency   time.Duration
	GenerationLatency  time.Duration
	RetrievedDocs      []RetrievedDoc
	NumRetrieved       int
	ModelName          string
	PromptTokens       int
	CompletionTokens   int
	SourceLanguage     string
	ResponseLanguage   string
	WasTranslated      bool
	TranslatedQuestion string
	Error              string
}

// Answer is the RagPipeline's final result for one question.
type Answer struct {
	Text    string
	Metrics Metrics
}
