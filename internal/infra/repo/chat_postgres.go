package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/domain/chat"
)

// ChatPostgres persists conversations and messages.
type ChatPostgres struct {
	pool *pgxpool.Pool
}

// NewChatPostgres constructs a Postgres-backed chat.Repository.
func NewChatPostgres(pool *pgxpool.Pool) *ChatPostgres {
	return &ChatPostgres{pool: pool}
}

func (r *ChatPostgres) CreateConversation(ctx context.Context, conv chat.Conversation) (chat.Conversation, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversations (id, title, user_id, workspace_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, conv.ID, conv.Title, conv.UserID, conv.WorkspaceID, conv.CreatedAt)
	if err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

func (r *ChatPostgres) GetConversation(ctx context.Context, workspaceID, conversationID string) (chat.Conversation, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, user_id, workspace_id, created_at
		FROM conversations WHERE id = $1 AND workspace_id = $2 LIMIT 1
	`, conversationID, workspaceID)
	if err != nil {
		return chat.Conversation{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return chat.Conversation{}, false, rows.Err()
	}
	conv, err := scanConversation(rows)
	if err != nil {
		return chat.Conversation{}, false, err
	}
	return conv, true, rows.Err()
}

func (r *ChatPostgres) ListConversations(ctx context.Context, userID int64) ([]chat.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, user_id, workspace_id, created_at
		FROM conversations WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chat.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (r *ChatPostgres) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, user_id, question, answer, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.ConversationID, msg.UserID, msg.Question, msg.Answer, msg.LatencyMs, msg.Timestamp)
	if err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

func (r *ChatPostgres) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, user_id, question, answer, latency_ms, created_at, feedback
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chat.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (r *ChatPostgres) GetMessage(ctx context.Context, messageID string) (chat.Message, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, user_id, question, answer, latency_ms, created_at, feedback
		FROM messages WHERE id = $1 LIMIT 1
	`, messageID)
	if err != nil {
		return chat.Message{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return chat.Message{}, false, rows.Err()
	}
	msg, err := scanMessage(rows)
	if err != nil {
		return chat.Message{}, false, err
	}
	return msg, true, rows.Err()
}

func (r *ChatPostgres) SetFeedback(ctx context.Context, messageID string, feedback chat.Feedback) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET feedback = $1 WHERE id = $2`, string(feedback), messageID)
	return err
}

type pgxRowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row pgxRowScanner) (chat.Conversation, error) {
	var conv chat.Conversation
	var created time.Time
	if err := row.Scan(&conv.ID, &conv.Title, &conv.UserID, &conv.WorkspaceID, &created); err != nil {
		return chat.Conversation{}, err
	}
	conv.CreatedAt = created.UTC()
	return conv, nil
}

func scanMessage(row pgxRowScanner) (chat.Message, error) {
	var msg chat.Message
	var created time.Time
	var feedback *string
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &msg.Question, &msg.Answer, &msg.LatencyMs, &created, &feedback); err != nil {
		return chat.Message{}, err
	}
	msg.Timestamp = created.UTC()
	if feedback != nil {
		f := chat.Feedback(*feedback)
		msg.Feedback = &f
	}
	return msg, nil
}

var _ chat.Repository = (*ChatPostgres)(nil)
