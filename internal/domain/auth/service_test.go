package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestService_RegisterLoginAndRefresh(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(Config{
		Secret:          "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}, repo, newTestLogger())

	view, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", view.Username)
	require.NotZero(t, view.ID)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Username: "alice",
		Password: "hunter22",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, view.Username, resp.User.Username)

	claims, err := svc.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, view.ID, claims.UserID)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)

	refreshed, err := svc.Refresh(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, resp.AccessToken, refreshed.AccessToken)
	require.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)
	require.Equal(t, resp.User.Username, refreshed.User.Username)

	// the rotated-out refresh token must no longer work.
	_, err = svc.Refresh(context.Background(), resp.RefreshToken)
	require.Error(t, err)
}

func TestService_DuplicateUsername(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(Config{
		Secret:          "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}, repo, newTestLogger())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Username: "bob",
		Password: "pass1234",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{
		Username: "bob",
		Password: "pass12345",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already registered")
}

func TestService_RefreshRotationCap(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(Config{
		Secret:             "test-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    24 * time.Hour,
		MaxActiveRefreshes: 2,
	}, repo, newTestLogger())

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "carol", Password: "pass1234"})
	require.NoError(t, err)

	var last LoginResponse
	for i := 0; i < 5; i++ {
		resp, err := svc.Login(context.Background(), LoginRequest{Username: "carol", Password: "pass1234"})
		require.NoError(t, err)
		last = resp
	}

	active := repo.activeCount(last.User.ID)
	require.LessOrEqual(t, active, 2)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type memoryRepo struct {
	mu      sync.Mutex
	users   map[int64]User
	seq     int64
	refresh map[string]RefreshToken
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:   make(map[int64]User),
		refresh: make(map[string]RefreshToken),
	}
}

func (m *memoryRepo) activeCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, t := range m.refresh {
		if t.UserID == userID && t.IsActive {
			count++
		}
	}
	return count
}

func (m *memoryRepo) Create(_ context.Context, username, email, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return User{}, ErrUsernameExists
		}
	}
	m.seq++
	user := User{
		ID:           m.seq,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) GetByUsername(_ context.Context, username string) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, true, nil
		}
	}
	return User{}, false, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *memoryRepo) GetIdentity(_ context.Context, provider, providerSubject string) (Identity, bool, error) {
	return Identity{}, false, nil
}

func (m *memoryRepo) GetIdentityByUser(_ context.Context, userID int64, provider string) (Identity, bool, error) {
	return Identity{}, false, nil
}

func (m *memoryRepo) UpsertIdentity(_ context.Context, identity Identity) (Identity, error) {
	return identity, nil
}

func (m *memoryRepo) CreateRefreshToken(_ context.Context, token RefreshToken) (RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token.CreatedAt = time.Now()
	m.refresh[token.ID] = token
	return token, nil
}

func (m *memoryRepo) GetActiveRefreshTokenByHash(_ context.Context, tokenHash string) (RefreshToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.refresh {
		if t.TokenHash == tokenHash && t.IsActive {
			return t, true, nil
		}
	}
	return RefreshToken{}, false, nil
}

func (m *memoryRepo) ListActiveRefreshTokens(_ context.Context, userID int64) ([]RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RefreshToken
	for _, t := range m.refresh {
		if t.UserID == userID && t.IsActive {
			out = append(out, t)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) DeactivateRefreshToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.refresh[id]; ok {
		t.IsActive = false
		m.refresh[id] = t
	}
	return nil
}

func (m *memoryRepo) DeactivateAllRefreshTokens(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.refresh {
		if t.UserID == userID {
			t.IsActive = false
			m.refresh[id] = t
		}
	}
	return nil
}

func (m *memoryRepo) DeleteExpiredRefreshTokens(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, t := range m.refresh {
		if t.ExpiresAt.Before(olderThan) {
			delete(m.refresh, id)
			count++
		}
	}
	return count, nil
}

func (m *memoryRepo) DeleteInactiveRefreshTokens(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, t := range m.refresh {
		if !t.IsActive && t.CreatedAt.Before(olderThan) {
			delete(m.refresh, id)
			count++
		}
	}
	return count, nil
}
