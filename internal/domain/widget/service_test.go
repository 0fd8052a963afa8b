package widget

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubBots struct {
	bots map[string]Bot
}

func (s *stubBots) GetBot(_ context.Context, botID string) (Bot, bool, error) {
	bot, ok := s.bots[botID]
	return bot, ok, nil
}

func (s *stubBots) MostRecentActiveBot(context.Context, int64) (Bot, bool, error) {
	return Bot{}, false, nil
}

func (s *stubBots) CreateBot(_ context.Context, bot Bot) (Bot, error) {
	s.bots[bot.ID] = bot
	return bot, nil
}

type stubSessions struct {
	sessions map[string]ChatSession
}

func (s *stubSessions) CreateSession(_ context.Context, session ChatSession) (ChatSession, error) {
	s.sessions[session.SessionToken] = session
	return session, nil
}

func (s *stubSessions) GetSessionByToken(_ context.Context, token string) (ChatSession, bool, error) {
	session, ok := s.sessions[token]
	return session, ok, nil
}

func (s *stubSessions) CountActiveSessions(context.Context, string) (int, error) { return 0, nil }

func (s *stubSessions) Touch(context.Context, string, int, int64) error { return nil }

type stubMessages struct {
	created []Message
}

func (s *stubMessages) CreateMessage(_ context.Context, msg Message) (Message, error) {
	s.created = append(s.created, msg)
	return msg, nil
}

type stubTokens struct {
	botID string
}

func (s *stubTokens) IssueWidgetToken(context.Context, int64, string) (string, int64, error) {
	return "token", 0, nil
}

func (s *stubTokens) VerifyWidgetToken(_ context.Context, token string) (int64, string, error) {
	if token != "valid-token" {
		return 0, "", errInvalidWidgetToken
	}
	return 1, s.botID, nil
}

var errInvalidWidgetToken = errors.New("invalid widget token")

type stubAnswerer struct{}

func (stubAnswerer) Answer(context.Context, string, int64, string, string) (string, error) {
	return "answer text", nil
}

func newTestService(t *testing.T) (Service, *stubSessions, *stubMessages) {
	t.Helper()
	bots := &stubBots{bots: map[string]Bot{"bot-1": {ID: "bot-1", IsActive: true, WorkspaceID: "ws-1", OwnerID: 1}}}
	sessions := &stubSessions{sessions: map[string]ChatSession{
		"session-tok": {ID: "session-1", BotID: "bot-1", SessionToken: "session-tok", IsActive: true},
	}}
	messages := &stubMessages{}
	tokens := &stubTokens{botID: "bot-1"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(Config{}, bots, sessions, messages, tokens, stubAnswerer{}, logger)
	return svc, sessions, messages
}

func TestService_SendMessage_RequiresWidgetToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.SendMessage(context.Background(), MessageRequest{SessionToken: "session-tok", Question: "hi"})
	require.Error(t, err)
}

func TestService_SendMessage_RejectsMismatchedBot(t *testing.T) {
	bots := &stubBots{bots: map[string]Bot{
		"bot-1": {ID: "bot-1", IsActive: true},
		"bot-2": {ID: "bot-2", IsActive: true},
	}}
	sessions := &stubSessions{sessions: map[string]ChatSession{
		"session-tok": {ID: "session-1", BotID: "bot-1", SessionToken: "session-tok", IsActive: true},
	}}
	tokens := &stubTokens{botID: "bot-2"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(Config{}, bots, sessions, &stubMessages{}, tokens, stubAnswerer{}, logger)

	_, err := svc.SendMessage(context.Background(), MessageRequest{
		WidgetToken:  "valid-token",
		SessionToken: "session-tok",
		Question:     "hi",
	})
	require.Error(t, err)
}

func TestService_SendMessage_PersistsAndReturnsMessageID(t *testing.T) {
	svc, _, messages := newTestService(t)
	resp, err := svc.SendMessage(context.Background(), MessageRequest{
		WidgetToken:  "valid-token",
		SessionToken: "session-tok",
		Question:     "hi",
	})
	require.NoError(t, err)
	require.Equal(t, "answer text", resp.Answer)
	require.NotEmpty(t, resp.MessageID)
	require.Len(t, messages.created, 1)
	require.Equal(t, resp.MessageID, messages.created[0].ID)
}
