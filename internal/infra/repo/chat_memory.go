package repo

import (
	"context"
	"sync"

	"github.com/yanqian/ai-helloworld/internal/domain/chat"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// ChatMemory is an in-memory chat.Repository for tests/dev.
type ChatMemory struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	messages      map[string]chat.Message
	byConv        map[string][]string
}

// NewChatMemory constructs an empty in-memory chat repository.
func NewChatMemory() *ChatMemory {
	return &ChatMemory{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string]chat.Message),
		byConv:        make(map[string][]string),
	}
}

func (m *ChatMemory) CreateConversation(_ context.Context, conv chat.Conversation) (chat.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conv.ID] = conv
	return conv, nil
}

func (m *ChatMemory) GetConversation(_ context.Context, workspaceID, conversationID string) (chat.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[conversationID]
	if !ok || conv.WorkspaceID != workspaceID {
		return chat.Conversation{}, false, nil
	}
	return conv, true, nil
}

func (m *ChatMemory) ListConversations(_ context.Context, userID int64) ([]chat.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []chat.Conversation
	for _, conv := range m.conversations {
		if conv.UserID == userID {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (m *ChatMemory) CreateMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ID] = msg
	m.byConv[msg.ConversationID] = append(m.byConv[msg.ConversationID], msg.ID)
	return msg, nil
}

func (m *ChatMemory) ListMessages(_ context.Context, conversationID string) ([]chat.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byConv[conversationID]
	out := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.messages[id])
	}
	return out, nil
}

func (m *ChatMemory) GetMessage(_ context.Context, messageID string) (chat.Message, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[messageID]
	return msg, ok, nil
}

func (m *ChatMemory) SetFeedback(_ context.Context, messageID string, feedback chat.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return apperrors.Wrap("not_found", "message not found", nil)
	}
	msg.Feedback = &feedback
	m.messages[messageID] = msg
	return nil
}

var _ chat.Repository = (*ChatMemory)(nil)
