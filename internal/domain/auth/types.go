package auth

import "time"

// Config drives authentication behavior.
type Config struct {
	Secret              string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	MaxActiveRefreshes  int
	InactiveCleanupAge  time.Duration
	Google              GoogleConfig
}

// GoogleConfig holds OAuth settings for the optional Google sign-in
// path.
type GoogleConfig struct {
	ClientID             string
	ClientSecret         string
	RedirectURL          string
	TokenEncryptionKey   string
	PostLoginRedirectURL string
}

// User represents a persisted account.
type User struct {
	ID                 int64     `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	IsAdmin             bool      `json:"is_admin"`
	CurrentWorkspaceID  string    `json:"current_workspace_id"`
	CreatedAt           time.Time `json:"created_at"`
}

// Identity represents an external auth provider linkage.
type Identity struct {
	ID              int64
	UserID          int64
	Provider        string
	ProviderSubject string
	ProviderEmail   string
	RefreshToken    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RefreshToken is a persisted, hashed opaque secret issued on login.
// Plaintext never persists; only its SHA-256 hash does.
type RefreshToken struct {
	ID        string
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	IsActive  bool
}

// RegisterRequest captures the registration payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest captures login details.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the issued token pair.
type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         UserView `json:"user"`
}

// UserView trims sensitive fields.
type UserView struct {
	ID                 int64     `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	IsAdmin            bool      `json:"is_admin"`
	CurrentWorkspaceID string    `json:"current_workspace_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// Claims are extracted from a validated access or widget JWT.
type Claims struct {
	UserID    int64
	TokenType string
	BotID     string
	ExpiresAt time.Time
}

// CleanupResult reports how many rows an expired-token sweep removed.
type CleanupResult struct {
	ExpiredRemoved int `json:"expired_removed"`
	InactiveRemoved int `json:"inactive_removed"`
}
