package userrepo

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/auth"
)

// MemoryRepository provides an in-memory user + refresh-token store
// for tests and the no-Postgres dev path.
type MemoryRepository struct {
	mu            sync.RWMutex
	users         map[int64]auth.User
	usernameIndex map[string]int64
	identities    map[string]auth.Identity
	userIndex     map[string]auth.Identity
	refresh       map[string]auth.RefreshToken
	seq           int64
	identityID    int64
}

// NewMemoryRepository constructs a new in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:         make(map[int64]auth.User),
		usernameIndex: make(map[string]int64),
		identities:    make(map[string]auth.Identity),
		userIndex:     make(map[string]auth.Identity),
		refresh:       make(map[string]auth.RefreshToken),
	}
}

// Create stores the user record.
func (r *MemoryRepository) Create(_ context.Context, username, email, passwordHash string) (auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.usernameIndex[username]; exists {
		return auth.User{}, auth.ErrUsernameExists
	}
	r.seq++
	user := auth.User{
		ID:           r.seq,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.users[user.ID] = user
	r.usernameIndex[username] = user.ID
	return user, nil
}

// GetByUsername returns a user by username.
func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.usernameIndex[username]; ok {
		return r.users[id], true, nil
	}
	return auth.User{}, false, nil
}

// GetByID fetches by ID.
func (r *MemoryRepository) GetByID(_ context.Context, id int64) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	return user, ok, nil
}

// GetIdentity returns an identity by provider and subject.
func (r *MemoryRepository) GetIdentity(_ context.Context, provider, providerSubject string) (auth.Identity, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := identityKey(provider, providerSubject)
	identity, ok := r.identities[key]
	return identity, ok, nil
}

// GetIdentityByUser returns an identity by user and provider.
func (r *MemoryRepository) GetIdentityByUser(_ context.Context, userID int64, provider string) (auth.Identity, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := userIdentityKey(provider, userID)
	identity, ok := r.userIndex[key]
	return identity, ok, nil
}

// UpsertIdentity stores or updates the identity mapping.
func (r *MemoryRepository) UpsertIdentity(_ context.Context, identity auth.Identity) (auth.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if identity.UserID == 0 {
		return auth.Identity{}, errors.New("userID is required")
	}
	key := identityKey(identity.Provider, identity.ProviderSubject)
	existing, ok := r.identities[key]
	if ok {
		if identity.RefreshToken != "" {
			existing.RefreshToken = identity.RefreshToken
		}
		if identity.ProviderEmail != "" {
			existing.ProviderEmail = identity.ProviderEmail
		}
		existing.UpdatedAt = time.Now().UTC()
		r.identities[key] = existing
		r.userIndex[userIdentityKey(existing.Provider, existing.UserID)] = existing
		return existing, nil
	}
	r.identityID++
	identity.ID = r.identityID
	now := time.Now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	r.identities[key] = identity
	r.userIndex[userIdentityKey(identity.Provider, identity.UserID)] = identity
	return identity, nil
}

// CreateRefreshToken stores a newly issued refresh token row.
func (r *MemoryRepository) CreateRefreshToken(_ context.Context, token auth.RefreshToken) (auth.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token.CreatedAt = time.Now().UTC()
	r.refresh[token.ID] = token
	return token, nil
}

// GetActiveRefreshTokenByHash looks up an active token by its stored
// hash.
func (r *MemoryRepository) GetActiveRefreshTokenByHash(_ context.Context, tokenHash string) (auth.RefreshToken, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, token := range r.refresh {
		if token.TokenHash == tokenHash && token.IsActive {
			return token, true, nil
		}
	}
	return auth.RefreshToken{}, false, nil
}

// ListActiveRefreshTokens returns a user's active tokens, newest
// first.
func (r *MemoryRepository) ListActiveRefreshTokens(_ context.Context, userID int64) ([]auth.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var tokens []auth.RefreshToken
	for _, token := range r.refresh {
		if token.UserID == userID && token.IsActive {
			tokens = append(tokens, token)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.After(tokens[j].CreatedAt) })
	return tokens, nil
}

func (r *MemoryRepository) DeactivateRefreshToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.refresh[id]; ok {
		token.IsActive = false
		r.refresh[id] = token
	}
	return nil
}

func (r *MemoryRepository) DeactivateAllRefreshTokens(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, token := range r.refresh {
		if token.UserID == userID {
			token.IsActive = false
			r.refresh[id] = token
		}
	}
	return nil
}

func (r *MemoryRepository) DeleteExpiredRefreshTokens(_ context.Context, olderThan time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, token := range r.refresh {
		if token.ExpiresAt.Before(olderThan) {
			delete(r.refresh, id)
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) DeleteInactiveRefreshTokens(_ context.Context, olderThan time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, token := range r.refresh {
		if !token.IsActive && token.CreatedAt.Before(olderThan) {
			delete(r.refresh, id)
			count++
		}
	}
	return count, nil
}

var _ auth.Repository = (*MemoryRepository)(nil)

func identityKey(provider, subject string) string {
	return provider + ":" + subject
}

func userIdentityKey(provider string, userID int64) string {
	return provider + ":" + strconv.FormatInt(userID, 10)
}
