package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

const (
	tokenTypeAccess = "access"
	tokenTypeWidget = "widget"

	defaultMaxActiveRefreshes = 2
	defaultInactiveCleanupAge = 7 * 24 * time.Hour
)

// Service exposes authentication workflows: password auth, optional
// Google SSO, and the access/refresh/widget token lifecycle.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (UserView, error)
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	GoogleAuthURL(ctx context.Context, state, codeChallenge string) (string, error)
	GoogleCallback(ctx context.Context, code, codeVerifier string) (LoginResponse, error)
	ValidateToken(ctx context.Context, token string) (Claims, error)
	Refresh(ctx context.Context, refreshToken string) (LoginResponse, error)
	Profile(ctx context.Context, userID int64) (UserView, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64) error
	CleanupExpiredTokens(ctx context.Context) (CleanupResult, error)
	IssueWidgetToken(ctx context.Context, ownerID int64, botID string, ttl time.Duration) (string, time.Time, error)
	VerifyWidgetToken(ctx context.Context, token string) (Claims, error)
}

type service struct {
	cfg    Config
	repo   Repository
	logger *slog.Logger

	// userLocks serializes refresh-token rotation per user, matching
	// the spec's "at most two active tokens" invariant under
	// concurrent refresh calls.
	userLocks keyedMutex
}

// NewService constructs a Service instance.
func NewService(cfg Config, repo Repository, logger *slog.Logger) Service {
	if cfg.MaxActiveRefreshes <= 0 {
		cfg.MaxActiveRefreshes = defaultMaxActiveRefreshes
	}
	if cfg.InactiveCleanupAge <= 0 {
		cfg.InactiveCleanupAge = defaultInactiveCleanupAge
	}
	return &service{
		cfg:    cfg,
		repo:   repo,
		logger: logger.With("component", "auth.service"),
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (UserView, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return UserView{}, apperrors.Wrap("invalid_input", "username cannot be empty", nil)
	}
	if err := validatePassword(req.Password); err != nil {
		return UserView{}, apperrors.Wrap("invalid_input", err.Error(), nil)
	}
	_, exists, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return UserView{}, apperrors.Wrap("auth_error", "failed to check user", err)
	}
	if exists {
		return UserView{}, apperrors.Wrap("username_exists", "username already registered", nil)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserView{}, apperrors.Wrap("auth_error", "failed to hash password", err)
	}
	user, err := s.repo.Create(ctx, username, strings.TrimSpace(req.Email), string(hashed))
	if err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return UserView{}, apperrors.Wrap("username_exists", "username already registered", err)
		}
		return UserView{}, apperrors.Wrap("auth_error", "failed to create user", err)
	}
	return toView(user), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || strings.TrimSpace(req.Password) == "" {
		return LoginResponse{}, apperrors.Wrap("invalid_input", "username and password are required", nil)
	}
	user, found, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("auth_error", "failed to fetch user", err)
	}
	if !found {
		return LoginResponse{}, apperrors.Wrap("invalid_credentials", "invalid username or password", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResponse{}, apperrors.Wrap("invalid_credentials", "invalid username or password", nil)
	}
	return s.issueTokenPair(ctx, user)
}

func (s *service) ValidateToken(ctx context.Context, token string) (Claims, error) {
	claims, err := s.parseJWT(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeAccess {
		return Claims{}, apperrors.Wrap("invalid_token", "token type mismatch", nil)
	}
	return claims, nil
}

func (s *service) Profile(ctx context.Context, userID int64) (UserView, error) {
	user, found, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return UserView{}, apperrors.Wrap("auth_error", "failed to load profile", err)
	}
	if !found {
		return UserView{}, apperrors.Wrap("not_found", "user not found", nil)
	}
	return toView(user), nil
}

// Refresh verifies the presented opaque refresh token and rotates it:
// the old token is deactivated and a new pair is issued, keeping at
// most cfg.MaxActiveRefreshes active tokens for the user.
func (s *service) Refresh(ctx context.Context, refreshToken string) (LoginResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return LoginResponse{}, apperrors.Wrap("invalid_token", "refresh token missing", nil)
	}
	hash := hashRefreshToken(refreshToken)
	existing, found, err := s.repo.GetActiveRefreshTokenByHash(ctx, hash)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("auth_error", "failed to load refresh token", err)
	}
	if !found || existing.ExpiresAt.Before(time.Now()) {
		return LoginResponse{}, apperrors.Wrap("invalid_token", "refresh token invalid or expired", nil)
	}

	unlock := s.userLocks.lock(strconv.FormatInt(existing.UserID, 10))
	defer unlock()

	user, found, err := s.repo.GetByID(ctx, existing.UserID)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("auth_error", "failed to load user", err)
	}
	if !found {
		return LoginResponse{}, apperrors.Wrap("not_found", "user not found", nil)
	}

	if err := s.repo.DeactivateRefreshToken(ctx, existing.ID); err != nil {
		s.logger.Warn("failed to deactivate rotated refresh token", "token_id", existing.ID, "error", err)
	}
	return s.issueTokenPairLocked(ctx, user)
}

func (s *service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	hash := hashRefreshToken(refreshToken)
	existing, found, err := s.repo.GetActiveRefreshTokenByHash(ctx, hash)
	if err != nil {
		return apperrors.Wrap("auth_error", "failed to load refresh token", err)
	}
	if !found {
		return nil
	}
	if err := s.repo.DeactivateRefreshToken(ctx, existing.ID); err != nil {
		return apperrors.Wrap("auth_error", "failed to invalidate refresh token", err)
	}
	return nil
}

func (s *service) LogoutAll(ctx context.Context, userID int64) error {
	unlock := s.userLocks.lock(strconv.FormatInt(userID, 10))
	defer unlock()
	if err := s.repo.DeactivateAllRefreshTokens(ctx, userID); err != nil {
		return apperrors.Wrap("auth_error", "failed to invalidate refresh tokens", err)
	}
	s.revokeGoogleIdentityToken(ctx, userID)
	return nil
}

// CleanupExpiredTokens deletes expired rows and rows that have been
// inactive for longer than cfg.InactiveCleanupAge.
func (s *service) CleanupExpiredTokens(ctx context.Context) (CleanupResult, error) {
	now := time.Now()
	expired, err := s.repo.DeleteExpiredRefreshTokens(ctx, now)
	if err != nil {
		return CleanupResult{}, apperrors.Wrap("auth_error", "failed to delete expired tokens", err)
	}
	inactive, err := s.repo.DeleteInactiveRefreshTokens(ctx, now.Add(-s.cfg.InactiveCleanupAge))
	if err != nil {
		return CleanupResult{}, apperrors.Wrap("auth_error", "failed to delete inactive tokens", err)
	}
	return CleanupResult{ExpiredRemoved: expired, InactiveRemoved: inactive}, nil
}

func (s *service) IssueWidgetToken(ctx context.Context, ownerID int64, botID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := widgetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(ownerID, 10),
			ID:        newTokenID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:    ownerID,
		BotID:     botID,
		TokenType: tokenTypeWidget,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, apperrors.Wrap("auth_error", "failed to sign widget token", err)
	}
	return signed, expiresAt, nil
}

func (s *service) VerifyWidgetToken(ctx context.Context, token string) (Claims, error) {
	claims, err := s.parseJWT(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeWidget {
		return Claims{}, apperrors.Wrap("invalid_token", "token type mismatch", nil)
	}
	return claims, nil
}

func (s *service) issueTokenPair(ctx context.Context, user User) (LoginResponse, error) {
	unlock := s.userLocks.lock(strconv.FormatInt(user.ID, 10))
	defer unlock()
	return s.issueTokenPairLocked(ctx, user)
}

// issueTokenPairLocked assumes the caller already holds the per-user
// lock. It mints a new access JWT and a new opaque refresh token, then
// enforces the "at most N active refresh tokens" rotation cap.
func (s *service) issueTokenPairLocked(ctx context.Context, user User) (LoginResponse, error) {
	access, err := s.generateAccessToken(user)
	if err != nil {
		return LoginResponse{}, err
	}

	plaintext, err := newOpaqueSecret()
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("auth_error", "failed to generate refresh token", err)
	}
	refreshRow := RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashRefreshToken(plaintext),
		ExpiresAt: time.Now().Add(s.cfg.RefreshTokenTTL),
		CreatedAt: time.Now(),
		IsActive:  true,
	}
	if _, err := s.repo.CreateRefreshToken(ctx, refreshRow); err != nil {
		return LoginResponse{}, apperrors.Wrap("auth_error", "failed to persist refresh token", err)
	}

	if err := s.enforceRotationCap(ctx, user.ID); err != nil {
		s.logger.Warn("failed to enforce refresh token rotation cap", "user_id", user.ID, "error", err)
	}

	return LoginResponse{AccessToken: access, RefreshToken: plaintext, User: toView(user)}, nil
}

// enforceRotationCap keeps only the cfg.MaxActiveRefreshes most
// recently created active tokens for the user, deactivating the rest.
func (s *service) enforceRotationCap(ctx context.Context, userID int64) error {
	active, err := s.repo.ListActiveRefreshTokens(ctx, userID)
	if err != nil {
		return err
	}
	if len(active) <= s.cfg.MaxActiveRefreshes {
		return nil
	}
	// ListActiveRefreshTokens returns newest first by repository
	// contract; anything beyond the cap is deactivated.
	for _, stale := range active[s.cfg.MaxActiveRefreshes:] {
		if err := s.repo.DeactivateRefreshToken(ctx, stale.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) generateAccessToken(user User) (string, error) {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        newTokenID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		},
		UserID:    user.ID,
		TokenType: tokenTypeAccess,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap("auth_error", "failed to sign token", err)
	}
	return signed, nil
}

func (s *service) parseJWT(token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, apperrors.Wrap("invalid_token", "token missing", nil)
	}
	parsed, err := jwt.ParseWithClaims(token, &widgetClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, apperrors.Wrap("invalid_token", "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*widgetClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap("invalid_token", "token invalid", nil)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return Claims{}, apperrors.Wrap("invalid_token", "token expired", nil)
	}
	return Claims{
		UserID:    claims.UserID,
		TokenType: claims.TokenType,
		BotID:     claims.BotID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func toView(user User) UserView {
	return UserView{
		ID:                 user.ID,
		Username:           user.Username,
		Email:              user.Email,
		IsAdmin:            user.IsAdmin,
		CurrentWorkspaceID: user.CurrentWorkspaceID,
		CreatedAt:          user.CreatedAt,
	}
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

// accessClaims and widgetClaims share a wire shape (accessClaims is a
// widgetClaims with BotID left empty) so a single parse path can
// validate either.
type widgetClaims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"user_id"`
	BotID     string `json:"bot_id,omitempty"`
	TokenType string `json:"type"`
}

type accessClaims = widgetClaims

func newTokenID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}

// newOpaqueSecret generates a 256-bit URL-safe refresh-token secret.
func newOpaqueSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashRefreshToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
