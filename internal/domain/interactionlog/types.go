package interactionlog

import "time"

// RAGEntry is one row of rag_interactions.jsonl.
type RAGEntry struct {
	Timestamp          time.Time `json:"timestamp"`
	SessionID          string    `json:"session_id"`
	UserID             int64     `json:"user_id"`
	UserQuery          string    `json:"user_query"`
	RetrievedDocs      any       `json:"retrieved_docs"`
	PromptTokens       int       `json:"prompt_tokens"`
	CompletionTokens   int       `json:"completion_tokens"`
	TotalTokens        int       `json:"total_tokens"`
	Response           string    `json:"response"`
	LatencyMs          int64     `json:"latency_ms"`
	RetrievalLatencyMs int64     `json:"retrieval_latency_ms"`
	GenerationLatencyMs int64    `json:"generation_latency_ms"`
	ModelName          string    `json:"model_name"`
	Temperature        float32   `json:"temperature"`
	SimilarityThreshold float64  `json:"similarity_threshold"`
	NumRetrieved       int       `json:"num_retrieved"`
	ConversationID     string    `json:"conversation_id"`
	MessageID          string    `json:"message_id"`
	Error              string    `json:"error,omitempty"`
	SourceLanguage     string    `json:"source_language"`
	ResponseLanguage   string    `json:"response_language"`
	WasTranslated      bool      `json:"was_translated"`
	OriginalQuestion   string    `json:"original_question"`
	TranslatedQuestion string    `json:"translated_question,omitempty"`
}

// FeedbackEntry is one row of feedback_interactions.jsonl.
type FeedbackEntry struct {
	Timestamp         time.Time `json:"timestamp"`
	SessionID         string    `json:"session_id"`
	MessageID         string    `json:"message_id"`
	UserID            int64     `json:"user_id"`
	FeedbackType      string    `json:"feedback_type"`
	OriginalQuery     string    `json:"original_query"`
	OriginalResponse  string    `json:"original_response"`
	ResponseLatencyMs int64     `json:"response_latency_ms"`
	NumRetrievedDocs  int       `json:"num_retrieved_docs"`
	ModelUsed         string    `json:"model_used"`
	ConversationID    string    `json:"conversation_id"`
	ClientIP          string    `json:"client_ip"`
}

// EstimateTokens is the documented floor used whenever an exact
// tokenizer count is unavailable: max(1, len(text)/4).
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}
