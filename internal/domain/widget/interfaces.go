package widget

import "context"

// BotRepository loads and provisions Bot definitions.
type BotRepository interface {
	GetBot(ctx context.Context, botID string) (Bot, bool, error)
	// MostRecentActiveBot returns the most recently created active bot
	// owned by ownerID, used by widget token generation when no bot_id
	// is given.
	MostRecentActiveBot(ctx context.Context, ownerID int64) (Bot, bool, error)
	CreateBot(ctx context.Context, bot Bot) (Bot, error)
}

// SessionRepository persists ChatSession rows and counts active
// sessions per bot for cap enforcement.
type SessionRepository interface {
	CreateSession(ctx context.Context, session ChatSession) (ChatSession, error)
	GetSessionByToken(ctx context.Context, token string) (ChatSession, bool, error)
	CountActiveSessions(ctx context.Context, botID string) (int, error)
	Touch(ctx context.Context, sessionID string, messagesCount int, lastActivityAt int64) error
}

// TokenIssuer mints and validates the widget's bot-scoped JWT. Backed
// by the auth package's access/widget token machinery.
type TokenIssuer interface {
	IssueWidgetToken(ctx context.Context, ownerID int64, botID string) (token string, expiresAt int64, err error)
	VerifyWidgetToken(ctx context.Context, token string) (ownerID int64, botID string, err error)
}

// MessageRepository persists one row per widget chat turn so a turn
// can be addressed by message_id the same way an authenticated chat
// Message can.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg Message) (Message, error)
}

// Answerer runs a question through the RAG pipeline for a given
// workspace/user context. Satisfied by ragpipeline.Pipeline through a
// thin adapter.
type Answerer interface {
	Answer(ctx context.Context, workspaceID string, ownerID int64, sessionID, question string) (text string, err error)
}
