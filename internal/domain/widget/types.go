package widget

import "time"

// Bot is the target of an embeddable widget: the workspace/prompt
// context a visitor's chat turns run against.
type Bot struct {
	ID           string
	Name         string
	WorkspaceID  string
	OwnerID      int64
	SystemPrompt string
	IsActive     bool
	CreatedAt    time.Time
}

// ChatSession is a single visitor's widget conversation, bound to one
// Bot.
type ChatSession struct {
	ID                string
	BotID             string
	SessionToken      string
	VisitorIdentifier string
	StartedAt         time.Time
	LastActivityAt    time.Time
	MessagesCount     int
	IsActive          bool
}

// Message is one persisted widget chat turn, addressable by ID the
// same way an authenticated chat.Message is.
type Message struct {
	ID        string
	SessionID string
	Question  string
	Answer    string
	LatencyMs int64
	Timestamp time.Time
}

// MessageRequest is a single widget chat turn. WidgetToken is the
// bearer token minted by GenerateToken; SendMessage requires it to
// still be valid and to name the same bot the session belongs to.
type MessageRequest struct {
	WidgetToken  string `json:"-"`
	SessionToken string `json:"session_token"`
	Question     string `json:"question"`
}

// MessageResponse carries the generated answer back to the widget.
type MessageResponse struct {
	Answer    string `json:"answer"`
	MessageID string `json:"message_id"`
	LatencyMs int64  `json:"latency_ms"`
}

// GenerateRequest asks for a widget token, optionally naming the bot
// and workspace to mint it for. When BotID is empty the service
// resolves the caller's most recently created active bot, creating
// one automatically if none exists yet.
type GenerateRequest struct {
	BotID       string `json:"bot_id"`
	BotName     string `json:"bot_name"`
	WorkspaceID string `json:"workspace_id"`
}

// GenerateResponse carries the minted widget token plus copy-paste
// embed markup for the resolved or newly created bot.
type GenerateResponse struct {
	WidgetToken string `json:"widget_token"`
	ExpiresAt   int64  `json:"expires_at"`
	EmbedCode   string `json:"embed_code"`
	BotID       string `json:"bot_id"`
	BotName     string `json:"bot_name"`
}

const defaultSessionCap = 100

const defaultBotSystemPrompt = "You are a helpful and friendly AI assistant. Provide clear, concise, and accurate answers to user questions."
