package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	LLM         LLMConfig         `yaml:"llm"`
	RAG         RAGConfig         `yaml:"rag"`
	Auth        AuthConfig        `yaml:"auth"`
	Widget      WidgetConfig      `yaml:"widget"`
	Data        DataConfig        `yaml:"data"`
	VectorStore VectorStoreConfig `yaml:"vectorStore"`
	Sync        SyncConfig        `yaml:"sync"`
	External    ExternalConfig    `yaml:"external"`
	Storage     StorageConfig     `yaml:"storage"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string           `yaml:"address"`
	ReadTimeout    time.Duration    `yaml:"readTimeout"`
	WriteTimeout   time.Duration    `yaml:"writeTimeout"`
	AllowedOrigins []string         `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig  `yaml:"rateLimit"`
	Retry          RetryConfig      `yaml:"retry"`
	WorkerPool     WorkerPoolConfig `yaml:"workerPool"`
}

// WorkerPoolConfig bounds concurrent in-flight RAG-pipeline requests
// (chat and widget chat); overflow is rejected with 503 rather than
// queued, so a slow LLM backend can't pile up unbounded goroutines.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries of POST requests that end
// in a 5xx response; paths listed in Exclude are never retried.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig contains the chat/embedding model provider settings.
// TODO: support a second local-model provider alongside the hosted one.
type LLMConfig struct {
	APIKey         string  `yaml:"apiKey"`
	BaseURL        string  `yaml:"baseUrl"`
	Model          string  `yaml:"model"`
	LocalModel     string  `yaml:"localModel"`
	IsLocal        bool    `yaml:"isLocal"`
	EmbeddingModel string  `yaml:"embeddingModel"`
	Temperature    float32 `yaml:"temperature"`
}

// RAGConfig controls retrieval-augmented generation behavior.
type RAGConfig struct {
	SimilarityK       int     `yaml:"similarityK"`
	ScoreThreshold    float64 `yaml:"scoreThreshold"`
	ChunkSize         int     `yaml:"chunkSize"`
	ChunkOverlap      int     `yaml:"chunkOverlap"`
	CollectionName    string  `yaml:"collectionName"`
	MaxQuestionLength int     `yaml:"maxQuestionLength"`
	DefaultLanguage   string  `yaml:"defaultLanguage"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret          string         `yaml:"jwtSecret"`
	AccessTokenTTL     time.Duration  `yaml:"accessTokenTtl"`
	RefreshTokenTTL    time.Duration  `yaml:"refreshTokenTtl"`
	WidgetTokenTTL     time.Duration  `yaml:"widgetTokenTtl"`
	MaxActiveRefreshes int            `yaml:"maxActiveRefreshes"`
	InactiveCleanupAge time.Duration  `yaml:"inactiveCleanupAge"`
	Postgres           PostgresConfig `yaml:"postgres"`
	Google             GoogleConfig   `yaml:"google"`
}

// GoogleConfig configures the optional Google SSO login path.
type GoogleConfig struct {
	ClientID             string `yaml:"clientId"`
	ClientSecret         string `yaml:"clientSecret"`
	RedirectURL          string `yaml:"redirectUrl"`
	TokenEncryptionKey   string `yaml:"tokenEncryptionKey"`
	PostLoginRedirectURL string `yaml:"postLoginRedirectUrl"`
}

// WidgetConfig bounds the embeddable widget deployment.
type WidgetConfig struct {
	SessionCap int `yaml:"sessionCap"`
}

// DataConfig controls where ingested documents and interaction logs live.
type DataConfig struct {
	Directory     string `yaml:"directory"`
	LogsDirectory string `yaml:"logsDirectory"`
}

// VectorStoreConfig configures the pgvector-backed chunk store.
type VectorStoreConfig struct {
	Postgres  PostgresConfig `yaml:"postgres"`
	VectorDim int            `yaml:"vectorDim"`
}

// SyncConfig configures the Valkey connection behind the external-sync
// job queue. WorkerEnabled is parsed but not read by any component.
type SyncConfig struct {
	Redis         RedisConfig `yaml:"redis"`
	WorkerEnabled bool        `yaml:"workerEnabled"`
}

// ExternalConfig configures the ClickUp-shaped external ticket provider.
type ExternalConfig struct {
	ClickUpAPIBase string        `yaml:"clickUpApiBase"`
	ClickUpTimeout time.Duration `yaml:"clickUpTimeout"`
}

// StorageConfig configures the optional R2/S3-compatible object mirror.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// RedisConfig contains connection information for cache/queue storage.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_READ_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_WRITE_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_LOCAL_MODEL"); v != "" {
		cfg.LLM.LocalModel = v
	}
	if v := os.Getenv("LLM_IS_LOCAL"); v != "" {
		cfg.LLM.IsLocal = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("RAG_SIMILARITY_K"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.SimilarityK = parsed
		}
	}
	if v := os.Getenv("RAG_SCORE_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RAG.ScoreThreshold = parsed
		}
	}
	if v := os.Getenv("RAG_CHUNK_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.ChunkSize = parsed
		}
	}
	if v := os.Getenv("RAG_CHUNK_OVERLAP"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.ChunkOverlap = parsed
		}
	}
	if v := os.Getenv("RAG_COLLECTION_NAME"); v != "" {
		cfg.RAG.CollectionName = v
	}
	if v := os.Getenv("RAG_MAX_QUESTION_LENGTH"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.MaxQuestionLength = parsed
		}
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTH_ACCESS_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.AccessTokenTTL = parsed
		}
	}
	if v := os.Getenv("AUTH_REFRESH_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.RefreshTokenTTL = parsed
		}
	}
	if v := os.Getenv("AUTH_WIDGET_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.WidgetTokenTTL = parsed
		}
	}
	if v := os.Getenv("AUTH_POSTGRES_DSN"); v != "" {
		cfg.Auth.Postgres.DSN = v
	}
	if v := os.Getenv("AUTH_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Auth.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("AUTH_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Auth.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("AUTH_GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.Google.ClientID = v
	}
	if v := os.Getenv("AUTH_GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Auth.Google.ClientSecret = v
	}
	if v := os.Getenv("AUTH_GOOGLE_REDIRECT_URL"); v != "" {
		cfg.Auth.Google.RedirectURL = v
	}
	if v := os.Getenv("AUTH_TOKEN_ENCRYPTION_KEY"); v != "" {
		cfg.Auth.Google.TokenEncryptionKey = v
	}
	if v := os.Getenv("WIDGET_SESSION_CAP"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Widget.SessionCap = parsed
		}
	}
	if v := os.Getenv("DATA_DIRECTORY"); v != "" {
		cfg.Data.Directory = v
	}
	if v := os.Getenv("LOGS_DIRECTORY"); v != "" {
		cfg.Data.LogsDirectory = v
	}
	if v := os.Getenv("VECTORSTORE_POSTGRES_DSN"); v != "" {
		cfg.VectorStore.Postgres.DSN = v
	}
	if v := os.Getenv("VECTORSTORE_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.VectorStore.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("VECTORSTORE_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.VectorStore.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("VECTORSTORE_VECTOR_DIM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.VectorStore.VectorDim = parsed
		}
	}
	if v := os.Getenv("SYNC_REDIS_ENABLED"); v != "" {
		cfg.Sync.Redis.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("SYNC_REDIS_ADDR"); v != "" {
		cfg.Sync.Redis.Addr = v
	}
	if v := os.Getenv("SYNC_WORKER_ENABLED"); v != "" {
		cfg.Sync.WorkerEnabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("EXTERNAL_CLICKUP_API_BASE"); v != "" {
		cfg.External.ClickUpAPIBase = v
	}
	if v := os.Getenv("EXTERNAL_CLICKUP_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.External.ClickUpTimeout = parsed
		}
	}
	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_REGION"); v != "" {
		cfg.Storage.Region = v
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address: ":8080",
			AllowedOrigins: []string{
				"*",
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/auth/login",
					"/api/v1/auth/register",
					"/api/v1/auth/refresh",
					"/api/v1/datasources/upload",
					"/api/v1/chat",
					"/api/v1/widget/chat",
				},
			},
			WorkerPool: WorkerPoolConfig{
				Size: 64,
			},
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.2,
		},
		RAG: RAGConfig{
			SimilarityK:       5,
			ScoreThreshold:    0.6,
			ChunkSize:         800,
			ChunkOverlap:      100,
			CollectionName:    "Aidly",
			MaxQuestionLength: 1000,
			DefaultLanguage:   "en",
		},
		Auth: AuthConfig{
			AccessTokenTTL:     time.Hour,
			RefreshTokenTTL:    30 * 24 * time.Hour,
			WidgetTokenTTL:     7 * 24 * time.Hour,
			MaxActiveRefreshes: 2,
			InactiveCleanupAge: 7 * 24 * time.Hour,
			Postgres: PostgresConfig{
				MaxConns: 5,
				MinConns: 1,
			},
		},
		Widget: WidgetConfig{
			SessionCap: 100,
		},
		Data: DataConfig{
			Directory:     "data",
			LogsDirectory: "logs",
		},
		VectorStore: VectorStoreConfig{
			VectorDim: 1536,
			Postgres: PostgresConfig{
				MaxConns: 10,
				MinConns: 2,
			},
		},
		Sync: SyncConfig{
			WorkerEnabled: true,
		},
		External: ExternalConfig{
			ClickUpAPIBase: "https://api.clickup.com/api/v2",
			ClickUpTimeout: 30 * time.Second,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if c.HTTP.WorkerPool.Size <= 0 {
		return errors.New("http.workerPool.size must be positive")
	}
	if strings.TrimSpace(c.LLM.EmbeddingModel) == "" {
		return errors.New("llm.embeddingModel cannot be empty")
	}
	if !c.LLM.IsLocal && strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.apiKey cannot be empty unless llm.isLocal is set")
	}
	if c.RAG.SimilarityK <= 0 {
		return errors.New("rag.similarityK must be positive")
	}
	if c.RAG.ScoreThreshold < 0 || c.RAG.ScoreThreshold > 1 {
		return errors.New("rag.scoreThreshold must be between 0 and 1")
	}
	if c.RAG.ChunkSize <= 0 {
		return errors.New("rag.chunkSize must be positive")
	}
	if c.RAG.ChunkOverlap < 0 {
		return errors.New("rag.chunkOverlap cannot be negative")
	}
	if c.RAG.MaxQuestionLength <= 0 {
		return errors.New("rag.maxQuestionLength must be positive")
	}
	if strings.TrimSpace(c.RAG.CollectionName) == "" {
		return errors.New("rag.collectionName cannot be empty")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret cannot be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("auth.accessTokenTtl must be positive")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth.refreshTokenTtl must be positive")
	}
	if c.Auth.WidgetTokenTTL <= 0 {
		return errors.New("auth.widgetTokenTtl must be positive")
	}
	if c.Auth.MaxActiveRefreshes <= 0 {
		return errors.New("auth.maxActiveRefreshes must be positive")
	}
	if c.Widget.SessionCap <= 0 {
		return errors.New("widget.sessionCap must be positive")
	}
	if c.Data.Directory == "" {
		return errors.New("data.directory cannot be empty")
	}
	if c.Data.LogsDirectory == "" {
		return errors.New("data.logsDirectory cannot be empty")
	}
	if c.VectorStore.VectorDim <= 0 {
		return errors.New("vectorStore.vectorDim must be positive")
	}
	if c.Sync.Redis.Enabled && strings.TrimSpace(c.Sync.Redis.Addr) == "" {
		return errors.New("sync.redis.addr cannot be empty when sync.redis is enabled")
	}
	if strings.TrimSpace(c.External.ClickUpAPIBase) == "" {
		return errors.New("external.clickUpApiBase cannot be empty")
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var result []string
	for _, part := range parts {
		val := strings.TrimSpace(part)
		if val != "" {
			result = append(result, val)
		}
	}
	return result
}
