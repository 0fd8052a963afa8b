package widget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// Config bounds a widget deployment.
type Config struct {
	SessionCap  int
	EmbedScript string
	EmbedAPI    string
}

// Service starts widget sessions and answers widget chat turns.
type Service interface {
	GenerateToken(ctx context.Context, ownerID int64, username string, req GenerateRequest) (GenerateResponse, error)
	StartSession(ctx context.Context, widgetToken, visitorIdentifier string) (ChatSession, error)
	SendMessage(ctx context.Context, req MessageRequest) (MessageResponse, error)
}

type service struct {
	cfg      Config
	bots     BotRepository
	sessions SessionRepository
	messages MessageRepository
	tokens   TokenIssuer
	answerer Answerer
	logger   *slog.Logger
}

// NewService wires bot lookup, session persistence, message
// persistence, token verification, and the RAG answerer into one
// widget Service.
func NewService(cfg Config, bots BotRepository, sessions SessionRepository, messages MessageRepository, tokens TokenIssuer, answerer Answerer, logger *slog.Logger) Service {
	if cfg.SessionCap <= 0 {
		cfg.SessionCap = defaultSessionCap
	}
	if cfg.EmbedScript == "" {
		cfg.EmbedScript = "/static/widget.js"
	}
	if cfg.EmbedAPI == "" {
		cfg.EmbedAPI = "/widget"
	}
	return &service{
		cfg:      cfg,
		bots:     bots,
		sessions: sessions,
		messages: messages,
		tokens:   tokens,
		answerer: answerer,
		logger:   logger.With("component", "widget.service"),
	}
}

func (s *service) GenerateToken(ctx context.Context, ownerID int64, username string, req GenerateRequest) (GenerateResponse, error) {
	bot, err := s.resolveOrCreateBot(ctx, ownerID, username, req)
	if err != nil {
		return GenerateResponse{}, err
	}
	if !bot.IsActive {
		return GenerateResponse{}, apperrors.Wrap("invalid_input", "bot is inactive, activate it before generating a widget", nil)
	}

	token, expiresAt, err := s.tokens.IssueWidgetToken(ctx, ownerID, bot.ID)
	if err != nil {
		return GenerateResponse{}, apperrors.Wrap("internal", "failed to issue widget token", err)
	}

	embedCode := fmt.Sprintf(
		"<script src=\"%s\" data-bot-id=\"%s\" data-token=\"%s\" data-api-base=\"%s\"></script>",
		s.cfg.EmbedScript, bot.ID, token, s.cfg.EmbedAPI,
	)

	return GenerateResponse{
		WidgetToken: token,
		ExpiresAt:   expiresAt,
		EmbedCode:   embedCode,
		BotID:       bot.ID,
		BotName:     bot.Name,
	}, nil
}

func (s *service) resolveOrCreateBot(ctx context.Context, ownerID int64, username string, req GenerateRequest) (Bot, error) {
	if req.BotID != "" {
		bot, found, err := s.bots.GetBot(ctx, req.BotID)
		if err != nil {
			return Bot{}, apperrors.Wrap("internal", "failed to load bot", err)
		}
		if !found {
			return Bot{}, apperrors.Wrap("not_found", "bot not found", nil)
		}
		if bot.OwnerID != ownerID {
			return Bot{}, apperrors.Wrap("forbidden", "you don't have permission to access this bot", nil)
		}
		return bot, nil
	}

	bot, found, err := s.bots.MostRecentActiveBot(ctx, ownerID)
	if err != nil {
		return Bot{}, apperrors.Wrap("internal", "failed to look up bot", err)
	}
	if found {
		return bot, nil
	}

	workspaceID := req.WorkspaceID
	if workspaceID == "" {
		return Bot{}, apperrors.Wrap("invalid_input", "workspace_id is required to create a bot", nil)
	}
	name := req.BotName
	if name == "" {
		name = fmt.Sprintf("%s's Chatbot", username)
	}
	created, err := s.bots.CreateBot(ctx, Bot{
		ID:           uuid.NewString(),
		Name:         name,
		WorkspaceID:  workspaceID,
		OwnerID:      ownerID,
		SystemPrompt: defaultBotSystemPrompt,
		IsActive:     true,
	})
	if err != nil {
		return Bot{}, apperrors.Wrap("internal", "failed to create bot", err)
	}
	return created, nil
}

func (s *service) StartSession(ctx context.Context, widgetToken, visitorIdentifier string) (ChatSession, error) {
	_, botID, err := s.tokens.VerifyWidgetToken(ctx, widgetToken)
	if err != nil {
		return ChatSession{}, apperrors.Wrap("invalid_token", "widget token invalid or expired", err)
	}
	bot, found, err := s.bots.GetBot(ctx, botID)
	if err != nil {
		return ChatSession{}, apperrors.Wrap("internal", "failed to load bot", err)
	}
	if !found || !bot.IsActive {
		return ChatSession{}, apperrors.Wrap("not_found", "bot not found or inactive", nil)
	}

	active, err := s.sessions.CountActiveSessions(ctx, botID)
	if err != nil {
		return ChatSession{}, apperrors.Wrap("internal", "failed to count active sessions", err)
	}
	if active >= s.cfg.SessionCap {
		return ChatSession{}, apperrors.Wrap("rate_limited", "widget session cap reached for this bot", nil)
	}

	now := time.Now()
	session := ChatSession{
		ID:                uuid.NewString(),
		BotID:             botID,
		SessionToken:      uuid.NewString(),
		VisitorIdentifier: visitorIdentifier,
		StartedAt:         now,
		LastActivityAt:    now,
		IsActive:          true,
	}
	return s.sessions.CreateSession(ctx, session)
}

func (s *service) SendMessage(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	if req.WidgetToken == "" {
		return MessageResponse{}, apperrors.Wrap("unauthorized", "widget token is required", nil)
	}
	if req.SessionToken == "" {
		return MessageResponse{}, apperrors.Wrap("invalid_input", "session token is required", nil)
	}
	_, tokenBotID, err := s.tokens.VerifyWidgetToken(ctx, req.WidgetToken)
	if err != nil {
		return MessageResponse{}, apperrors.Wrap("invalid_token", "widget token invalid or expired", err)
	}
	session, found, err := s.sessions.GetSessionByToken(ctx, req.SessionToken)
	if err != nil {
		return MessageResponse{}, apperrors.Wrap("internal", "failed to load session", err)
	}
	if !found || !session.IsActive {
		return MessageResponse{}, apperrors.Wrap("invalid_token", "session not found or inactive", nil)
	}
	if session.BotID != tokenBotID {
		return MessageResponse{}, apperrors.Wrap("invalid_token", "widget token does not match session's bot", nil)
	}
	bot, found, err := s.bots.GetBot(ctx, session.BotID)
	if err != nil {
		return MessageResponse{}, apperrors.Wrap("internal", "failed to load bot", err)
	}
	if !found || !bot.IsActive {
		return MessageResponse{}, apperrors.Wrap("not_found", "bot not found or inactive", nil)
	}

	start := time.Now()
	answer, err := s.answerer.Answer(ctx, bot.WorkspaceID, bot.OwnerID, session.ID, req.Question)
	if err != nil {
		return MessageResponse{}, apperrors.Wrap("internal", "failed to generate answer", err)
	}
	latency := time.Since(start)

	msg, err := s.messages.CreateMessage(ctx, Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Question:  req.Question,
		Answer:    answer,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now(),
	})
	if err != nil {
		return MessageResponse{}, apperrors.Wrap("internal", "failed to persist message", err)
	}

	if err := s.sessions.Touch(ctx, session.ID, session.MessagesCount+1, time.Now().Unix()); err != nil {
		s.logger.Warn("failed to update session activity", "session_id", session.ID, "error", err)
	}

	return MessageResponse{Answer: msg.Answer, MessageID: msg.ID, LatencyMs: msg.LatencyMs}, nil
}
