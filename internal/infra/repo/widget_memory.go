package repo

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/widget"
)

// WidgetMemory is an in-memory widget.BotRepository, widget.SessionRepository, and widget.MessageRepository for tests/dev.
type WidgetMemory struct {
	mu       sync.RWMutex
	bots     map[string]widget.Bot
	sessions map[string]widget.ChatSession
	messages map[string]widget.Message
}

// NewWidgetMemory constructs an empty in-memory widget store.
func NewWidgetMemory() *WidgetMemory {
	return &WidgetMemory{
		bots:     make(map[string]widget.Bot),
		sessions: make(map[string]widget.ChatSession),
		messages: make(map[string]widget.Message),
	}
}

// PutBot seeds or updates a bot for fixtures/admin endpoints.
func (m *WidgetMemory) PutBot(bot widget.Bot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bots[bot.ID] = bot
}

func (m *WidgetMemory) GetBot(_ context.Context, botID string) (widget.Bot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bot, ok := m.bots[botID]
	return bot, ok, nil
}

func (m *WidgetMemory) MostRecentActiveBot(_ context.Context, ownerID int64) (widget.Bot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best widget.Bot
	found := false
	for _, bot := range m.bots {
		if bot.OwnerID != ownerID || !bot.IsActive {
			continue
		}
		if !found || bot.CreatedAt.After(best.CreatedAt) {
			best = bot
			found = true
		}
	}
	return best, found, nil
}

func (m *WidgetMemory) CreateBot(_ context.Context, bot widget.Bot) (widget.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = time.Now()
	}
	m.bots[bot.ID] = bot
	return bot, nil
}

func (m *WidgetMemory) CreateSession(_ context.Context, session widget.ChatSession) (widget.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SessionToken] = session
	return session, nil
}

func (m *WidgetMemory) GetSessionByToken(_ context.Context, token string) (widget.ChatSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[token]
	return session, ok, nil
}

func (m *WidgetMemory) CountActiveSessions(_ context.Context, botID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, session := range m.sessions {
		if session.BotID == botID && session.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *WidgetMemory) Touch(_ context.Context, sessionID string, messagesCount int, lastActivityAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, session := range m.sessions {
		if session.ID == sessionID {
			session.MessagesCount = messagesCount
			session.LastActivityAt = time.Unix(lastActivityAt, 0).UTC()
			m.sessions[token] = session
			return nil
		}
	}
	return nil
}

func (m *WidgetMemory) CreateMessage(_ context.Context, msg widget.Message) (widget.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.messages[msg.ID] = msg
	return msg, nil
}

var _ widget.BotRepository = (*WidgetMemory)(nil)
var _ widget.SessionRepository = (*WidgetMemory)(nil)
var _ widget.MessageRepository = (*WidgetMemory)(nil)
