package auth

import (
	"context"
	"time"
)

// Repository abstracts user and refresh-token persistence.
type Repository interface {
	Create(ctx context.Context, username, email, passwordHash string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, bool, error)
	GetByID(ctx context.Context, id int64) (User, bool, error)
	GetIdentity(ctx context.Context, provider, providerSubject string) (Identity, bool, error)
	GetIdentityByUser(ctx context.Context, userID int64, provider string) (Identity, bool, error)
	UpsertIdentity(ctx context.Context, identity Identity) (Identity, error)

	// Refresh-token lifecycle.
	CreateRefreshToken(ctx context.Context, token RefreshToken) (RefreshToken, error)
	GetActiveRefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshToken, bool, error)
	ListActiveRefreshTokens(ctx context.Context, userID int64) ([]RefreshToken, error)
	DeactivateRefreshToken(ctx context.Context, id string) error
	DeactivateAllRefreshTokens(ctx context.Context, userID int64) error
	DeleteExpiredRefreshTokens(ctx context.Context, olderThan time.Time) (int, error)
	DeleteInactiveRefreshTokens(ctx context.Context, olderThan time.Time) (int, error)
}
