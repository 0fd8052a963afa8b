package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/widget"
)

// WidgetPostgres persists Bot and ChatSession rows.
type WidgetPostgres struct {
	pool *pgxpool.Pool
}

// NewWidgetPostgres constructs a Postgres-backed widget repository,
// satisfying both widget.BotRepository and widget.SessionRepository.
func NewWidgetPostgres(pool *pgxpool.Pool) *WidgetPostgres {
	return &WidgetPostgres{pool: pool}
}

func (r *WidgetPostgres) GetBot(ctx context.Context, botID string) (widget.Bot, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, workspace_id, owner_id, system_prompt, is_active, created_at
		FROM bots WHERE id = $1 LIMIT 1
	`, botID)
	if err != nil {
		return widget.Bot{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return widget.Bot{}, false, rows.Err()
	}
	bot, err := scanBot(rows)
	if err != nil {
		return widget.Bot{}, false, err
	}
	return bot, true, rows.Err()
}

func (r *WidgetPostgres) MostRecentActiveBot(ctx context.Context, ownerID int64) (widget.Bot, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, workspace_id, owner_id, system_prompt, is_active, created_at
		FROM bots WHERE owner_id = $1 AND is_active = true
		ORDER BY created_at DESC LIMIT 1
	`, ownerID)
	if err != nil {
		return widget.Bot{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return widget.Bot{}, false, rows.Err()
	}
	bot, err := scanBot(rows)
	if err != nil {
		return widget.Bot{}, false, err
	}
	return bot, true, rows.Err()
}

func (r *WidgetPostgres) CreateBot(ctx context.Context, bot widget.Bot) (widget.Bot, error) {
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bots (id, name, workspace_id, owner_id, system_prompt, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, bot.ID, bot.Name, bot.WorkspaceID, bot.OwnerID, bot.SystemPrompt, bot.IsActive, bot.CreatedAt)
	if err != nil {
		return widget.Bot{}, err
	}
	return bot, nil
}

func scanBot(row pgxRowScanner) (widget.Bot, error) {
	var bot widget.Bot
	var createdAt time.Time
	if err := row.Scan(&bot.ID, &bot.Name, &bot.WorkspaceID, &bot.OwnerID, &bot.SystemPrompt, &bot.IsActive, &createdAt); err != nil {
		return widget.Bot{}, err
	}
	bot.CreatedAt = createdAt.UTC()
	return bot, nil
}

func (r *WidgetPostgres) CreateSession(ctx context.Context, session widget.ChatSession) (widget.ChatSession, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_sessions (id, bot_id, session_token, visitor_identifier, started_at, last_activity_at, messages_count, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.BotID, session.SessionToken, session.VisitorIdentifier, session.StartedAt, session.LastActivityAt, session.MessagesCount, session.IsActive)
	if err != nil {
		return widget.ChatSession{}, err
	}
	return session, nil
}

func (r *WidgetPostgres) GetSessionByToken(ctx context.Context, token string) (widget.ChatSession, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bot_id, session_token, visitor_identifier, started_at, last_activity_at, messages_count, is_active
		FROM chat_sessions WHERE session_token = $1 LIMIT 1
	`, token)
	if err != nil {
		return widget.ChatSession{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return widget.ChatSession{}, false, rows.Err()
	}
	session, err := scanChatSession(rows)
	if err != nil {
		return widget.ChatSession{}, false, err
	}
	return session, true, rows.Err()
}

func (r *WidgetPostgres) CountActiveSessions(ctx context.Context, botID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chat_sessions WHERE bot_id = $1 AND is_active = true`, botID).Scan(&count)
	return count, err
}

func (r *WidgetPostgres) Touch(ctx context.Context, sessionID string, messagesCount int, lastActivityAt int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE chat_sessions SET messages_count = $1, last_activity_at = $2 WHERE id = $3
	`, messagesCount, time.Unix(lastActivityAt, 0), sessionID)
	return err
}

func scanChatSession(row pgxRowScanner) (widget.ChatSession, error) {
	var session widget.ChatSession
	var started, lastActivity time.Time
	if err := row.Scan(&session.ID, &session.BotID, &session.SessionToken, &session.VisitorIdentifier, &started, &lastActivity, &session.MessagesCount, &session.IsActive); err != nil {
		return widget.ChatSession{}, err
	}
	session.StartedAt = started.UTC()
	session.LastActivityAt = lastActivity.UTC()
	return session, nil
}

func (r *WidgetPostgres) CreateMessage(ctx context.Context, msg widget.Message) (widget.Message, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO widget_messages (id, session_id, question, answer, latency_ms, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.SessionID, msg.Question, msg.Answer, msg.LatencyMs, msg.Timestamp)
	if err != nil {
		return widget.Message{}, err
	}
	return msg, nil
}

var _ widget.BotRepository = (*WidgetPostgres)(nil)
var _ widget.SessionRepository = (*WidgetPostgres)(nil)
var _ widget.MessageRepository = (*WidgetPostgres)(nil)
