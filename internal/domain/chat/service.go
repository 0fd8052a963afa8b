package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	interactionlog "github.com/yanqian/ai-helloworld/internal/domain/interactionlog"
	"github.com/yanqian/ai-helloworld/internal/domain/ragpipeline"
	"github.com/yanqian/ai-helloworld/internal/domain/retrieval"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
	"github.com/yanqian/ai-helloworld/pkg/metrics"
	"github.com/yanqian/ai-helloworld/pkg/tokencount"
	"github.com/yanqian/ai-helloworld/pkg/util"
)

// Service answers questions and persists the resulting conversation
// turn.
type Service interface {
	Ask(ctx context.Context, userID int64, req Request) (Response, error)
	Feedback(ctx context.Context, messageID string, feedback Feedback, clientIP string) error
	ListConversations(ctx context.Context, userID int64) ([]Conversation, error)
	ListMessages(ctx context.Context, workspaceID, conversationID string) ([]Message, error)
}

type service struct {
	repo      Repository
	workspace CurrentWorkspace
	pipeline  ragpipeline.Pipeline
	logs      interactionlog.Logger
	logger    *slog.Logger
}

// NewService wires the pieces a chat turn needs.
func NewService(repo Repository, workspace CurrentWorkspace, pipeline ragpipeline.Pipeline, logs interactionlog.Logger, logger *slog.Logger) Service {
	return &service{
		repo:      repo,
		workspace: workspace,
		pipeline:  pipeline,
		logs:      logs,
		logger:    logger.With("component", "chat.service"),
	}
}

func (s *service) Ask(ctx context.Context, userID int64, req Request) (Response, error) {
	question := strings.TrimSpace(req.Question)
	if len(question) < minQuestionLen || len(question) > maxQuestionLen {
		return Response{}, apperrors.Wrap("invalid_input", fmt.Sprintf("question must be between %d and %d characters", minQuestionLen, maxQuestionLen), nil)
	}

	workspaceID, found, err := s.workspace.CurrentWorkspaceID(ctx, userID)
	if err != nil {
		return Response{}, apperrors.Wrap("internal", "failed to resolve workspace", err)
	}
	if !found || workspaceID == "" {
		return Response{}, apperrors.Wrap("invalid_input", "no active workspace for user", nil)
	}

	conv, err := s.resolveConversation(ctx, userID, workspaceID, req.ConversationID, question)
	if err != nil {
		return Response{}, err
	}

	start := time.Now()
	answer, err := s.pipeline.Run(ctx, ragpipeline.Request{
		Question:    question,
		WorkspaceID: workspaceID,
		UserID:      userID,
		SessionID:   conv.ID,
	})
	if err != nil {
		return Response{}, apperrors.Wrap("internal", "failed to generate answer", err)
	}
	latency := time.Since(start)

	msg, err := s.repo.CreateMessage(ctx, Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		UserID:         userID,
		Question:       question,
		Answer:         answer.Text,
		LatencyMs:      latency.Milliseconds(),
		Timestamp:      util.NowUTC(),
	})
	if err != nil {
		return Response{}, apperrors.Wrap("internal", "failed to persist message", err)
	}

	s.logInteraction(conv.ID, userID, msg, answer)

	return Response{
		Answer:         msg.Answer,
		LatencyMs:      msg.LatencyMs,
		MessageID:      msg.ID,
		ConversationID: conv.ID,
	}, nil
}

func (s *service) resolveConversation(ctx context.Context, userID int64, workspaceID, conversationID, question string) (Conversation, error) {
	if conversationID != "" {
		conv, found, err := s.repo.GetConversation(ctx, workspaceID, conversationID)
		if err != nil {
			return Conversation{}, apperrors.Wrap("internal", "failed to load conversation", err)
		}
		if found {
			return conv, nil
		}
	}
	title := question
	if len(title) > 10 {
		title = title[:10] + "..."
	}
	return s.repo.CreateConversation(ctx, Conversation{
		ID:          uuid.NewString(),
		Title:       title,
		UserID:      userID,
		WorkspaceID: workspaceID,
		CreatedAt:   util.NowUTC(),
	})
}

func (s *service) Feedback(ctx context.Context, messageID string, feedback Feedback, clientIP string) error {
	msg, found, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return apperrors.Wrap("internal", "failed to load message", err)
	}
	if !found {
		return apperrors.Wrap("not_found", "message not found", nil)
	}
	if err := s.repo.SetFeedback(ctx, messageID, feedback); err != nil {
		return apperrors.Wrap("internal", "failed to persist feedback", err)
	}
	s.logs.LogFeedback(ctx, interactionlog.FeedbackEntry{
		Timestamp:         util.NowUTC(),
		MessageID:         messageID,
		UserID:            msg.UserID,
		FeedbackType:      string(feedback),
		OriginalQuery:     msg.Question,
		OriginalResponse:  msg.Answer,
		ResponseLatencyMs: msg.LatencyMs,
		ConversationID:    msg.ConversationID,
		ClientIP:          clientIP,
	})
	return nil
}

func (s *service) ListConversations(ctx context.Context, userID int64) ([]Conversation, error) {
	return s.repo.ListConversations(ctx, userID)
}

func (s *service) ListMessages(ctx context.Context, workspaceID, conversationID string) ([]Message, error) {
	if _, found, err := s.repo.GetConversation(ctx, workspaceID, conversationID); err != nil {
		return nil, apperrors.Wrap("internal", "failed to load conversation", err)
	} else if !found {
		return nil, apperrors.Wrap("not_found", "conversation not found", nil)
	}
	return s.repo.ListMessages(ctx, conversationID)
}

// logInteraction fires the telemetry write on a separate goroutine: a
// logging failure must never fail the chat request.
func (s *service) logInteraction(conversationID string, userID int64, msg Message, answer retrieval.Answer) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("interaction log panicked", "recovered", r)
			}
		}()
		m := answer.Metrics
		// The LLM adapter's own usage counts are authoritative when present;
		// otherwise fall back to a tokenizer-accurate count (and, failing
		// that, the tokencount package's heuristic floor).
		promptTokens := m.PromptTokens
		if promptTokens == 0 {
			promptTokens = tokencount.Default().Count(msg.Question)
		}
		completionTokens := m.CompletionTokens
		if completionTokens == 0 {
			completionTokens = tokencount.Default().Count(msg.Answer)
		}
		usage := metrics.TokenUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		}
		if usage.IsZero() {
			s.logger.Warn("token usage unavailable for interaction", "message_id", msg.ID)
		}
		s.logs.LogInteraction(context.Background(), interactionlog.RAGEntry{
			Timestamp:           util.NowUTC(),
			SessionID:           conversationID,
			UserID:              userID,
			UserQuery:           msg.Question,
			RetrievedDocs:       m.RetrievedDocs,
			PromptTokens:        usage.PromptTokens,
			CompletionTokens:    usage.CompletionTokens,
			TotalTokens:         usage.TotalTokens,
			Response:            msg.Answer,
			LatencyMs:           msg.LatencyMs,
			RetrievalLatencyMs:  m.RetrievalLatency.Milliseconds(),
			GenerationLatencyMs: m.GenerationLatency.Milliseconds(),
			ModelName:           m.ModelName,
			NumRetrieved:        m.NumRetrieved,
			ConversationID:      conversationID,
			MessageID:           msg.ID,
			Error:               m.Error,
			SourceLanguage:      m.SourceLanguage,
			ResponseLanguage:    m.ResponseLanguage,
			WasTranslated:       m.WasTranslated,
			OriginalQuestion:    msg.Question,
			TranslatedQuestion:  m.TranslatedQuestion,
		})
	}()
}
