package chat

import "time"

// Conversation is a durable container of Messages owned by one user
// within one workspace.
type Conversation struct {
	ID          string
	Title       string
	UserID      int64
	WorkspaceID string
	CreatedAt   time.Time
}

// Feedback is the vote a user casts on a Message's answer.
type Feedback string

const (
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// Message is one question/answer turn inside a Conversation.
type Message struct {
	ID             string
	ConversationID string
	UserID         int64
	Question       string
	Answer         string
	LatencyMs      int64
	Timestamp      time.Time
	Feedback       *Feedback
}

// Request is the inbound payload for POST /chat.
type Request struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
	ModelName      string `json:"model_name"`
}

// Response is the outbound payload for POST /chat.
type Response struct {
	Answer         string `json:"answer"`
	LatencyMs      int64  `json:"latency_ms"`
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

const (
	minQuestionLen = 1
	maxQuestionLen = 1000
)
