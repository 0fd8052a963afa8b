// Package adapter wires one domain service's interface onto another's,
// where the two packages are independently grounded but a concrete
// caller needs them stitched together.
package adapter

import (
	"context"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/auth"
	"github.com/yanqian/ai-helloworld/internal/domain/ragpipeline"
	"github.com/yanqian/ai-helloworld/internal/domain/widget"
)

// WidgetTokenIssuer satisfies widget.TokenIssuer by delegating to
// auth.Service's shared JWT machinery with a fixed token lifetime.
type WidgetTokenIssuer struct {
	Auth auth.Service
	TTL  time.Duration
}

// NewWidgetTokenIssuer constructs a widget.TokenIssuer backed by auth.Service.
func NewWidgetTokenIssuer(authSvc auth.Service, ttl time.Duration) *WidgetTokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &WidgetTokenIssuer{Auth: authSvc, TTL: ttl}
}

func (a *WidgetTokenIssuer) IssueWidgetToken(ctx context.Context, ownerID int64, botID string) (string, int64, error) {
	token, expiresAt, err := a.Auth.IssueWidgetToken(ctx, ownerID, botID, a.TTL)
	if err != nil {
		return "", 0, err
	}
	return token, expiresAt.Unix(), nil
}

func (a *WidgetTokenIssuer) VerifyWidgetToken(ctx context.Context, token string) (int64, string, error) {
	claims, err := a.Auth.VerifyWidgetToken(ctx, token)
	if err != nil {
		return 0, "", err
	}
	return claims.UserID, claims.BotID, nil
}

var _ widget.TokenIssuer = (*WidgetTokenIssuer)(nil)

// WidgetAnswerer satisfies widget.Answerer by delegating to the RAG
// pipeline, discarding the retrieval metrics a widget visitor never sees.
type WidgetAnswerer struct {
	Pipeline ragpipeline.Pipeline
}

// NewWidgetAnswerer constructs a widget.Answerer backed by a ragpipeline.Pipeline.
func NewWidgetAnswerer(pipeline ragpipeline.Pipeline) *WidgetAnswerer {
	return &WidgetAnswerer{Pipeline: pipeline}
}

func (a *WidgetAnswerer) Answer(ctx context.Context, workspaceID string, ownerID int64, sessionID, question string) (string, error) {
	result, err := a.Pipeline.Run(ctx, ragpipeline.Request{
		Question:    question,
		WorkspaceID: workspaceID,
		UserID:      ownerID,
		SessionID:   sessionID,
	})
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

var _ widget.Answerer = (*WidgetAnswerer)(nil)
