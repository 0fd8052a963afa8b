package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ai-helloworld/internal/domain/auth"
	"github.com/yanqian/ai-helloworld/internal/domain/chat"
	"github.com/yanqian/ai-helloworld/internal/domain/externalsync"
	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
	"github.com/yanqian/ai-helloworld/internal/domain/ragpipeline"
	"github.com/yanqian/ai-helloworld/internal/domain/retrieval"
	"github.com/yanqian/ai-helloworld/internal/domain/widget"
	"github.com/yanqian/ai-helloworld/internal/infra/adapter"
	"github.com/yanqian/ai-helloworld/internal/infra/cache"
	"github.com/yanqian/ai-helloworld/internal/infra/chatllm"
	"github.com/yanqian/ai-helloworld/internal/infra/config"
	"github.com/yanqian/ai-helloworld/internal/infra/embedder"
	"github.com/yanqian/ai-helloworld/internal/infra/externalclient"
	"github.com/yanqian/ai-helloworld/internal/infra/queue"
	"github.com/yanqian/ai-helloworld/internal/infra/repo"
	"github.com/yanqian/ai-helloworld/internal/infra/splitter"
	"github.com/yanqian/ai-helloworld/internal/infra/storage"
	"github.com/yanqian/ai-helloworld/internal/infra/userrepo"
	"github.com/yanqian/ai-helloworld/internal/infra/vectorstore"
)

// appPostgresPool is the shared relational pool behind auth, chat,
// widget, ingest, preference and credential storage. It is keyed off
// auth.postgres.dsn, the one DSN SPEC configuration names for the
// service's own tables.
var (
	appPoolOnce sync.Once
	appPool     *pgxpool.Pool
)

func provideAppPostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	appPoolOnce.Do(func() {
		dsn := strings.TrimSpace(cfg.Auth.Postgres.DSN)
		if dsn == "" {
			logger.Info("auth postgres dsn not set, using memory repositories")
			return
		}
		poolConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			logger.Error("invalid auth postgres dsn, using memory repositories", "error", err)
			return
		}
		if cfg.Auth.Postgres.MaxConns > 0 {
			poolConfig.MaxConns = cfg.Auth.Postgres.MaxConns
		}
		if cfg.Auth.Postgres.MinConns > 0 {
			poolConfig.MinConns = cfg.Auth.Postgres.MinConns
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			logger.Error("failed to initialize auth postgres pool, using memory repositories", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("auth postgres ping failed, using memory repositories", "error", err)
			pool.Close()
			return
		}
		logger.Info("postgres repositories enabled", "dsn_host", dsnHost(dsn))
		appPool = pool
	})
	return appPool
}

// vectorPostgresPool is the pgvector-backed pool for retrieval chunks.
// It registers the pgvector type codec on connect and may legitimately
// point at a separate Postgres instance from appPool.
var (
	vectorPoolOnce sync.Once
	vectorPool     *pgxpool.Pool
)

func provideVectorPostgresPool(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	vectorPoolOnce.Do(func() {
		dsn := strings.TrimSpace(cfg.VectorStore.Postgres.DSN)
		if dsn == "" {
			logger.Info("vectorstore postgres dsn not set, using in-memory vector store")
			return
		}
		poolConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			logger.Error("invalid vectorstore postgres dsn, using in-memory vector store", "error", err)
			return
		}
		registerPgVector(poolConfig, logger)
		if cfg.VectorStore.Postgres.MaxConns > 0 {
			poolConfig.MaxConns = cfg.VectorStore.Postgres.MaxConns
		}
		if cfg.VectorStore.Postgres.MinConns > 0 {
			poolConfig.MinConns = cfg.VectorStore.Postgres.MinConns
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			logger.Error("failed to initialize vectorstore postgres pool, using in-memory vector store", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("vectorstore postgres ping failed, using in-memory vector store", "error", err)
			pool.Close()
			return
		}
		logger.Info("pgvector store enabled", "dsn_host", dsnHost(dsn))
		vectorPool = pool
	})
	return vectorPool
}

func registerPgVector(poolConfig *pgxpool.Config, logger *slog.Logger) {
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		var oid uint32
		if err := conn.QueryRow(ctx, "SELECT 'vector'::regtype::oid").Scan(&oid); err != nil {
			logger.Error("failed to lookup pgvector oid", "error", err)
			return err
		}
		conn.TypeMap().RegisterType(&pgtype.Type{
			Name:  "vector",
			OID:   oid,
			Codec: pgtype.TextCodec{},
		})
		return nil
	}
}

func dsnHost(dsn string) string {
	if idx := strings.Index(dsn, "@"); idx != -1 {
		rest := dsn[idx+1:]
		if end := strings.IndexAny(rest, "/?"); end != -1 {
			return rest[:end]
		}
		return rest
	}
	return "configured"
}

// sharedValkeyClient is reused by both the trending-query cache and
// the background job queue, since both are dual-purpose uses of the
// same Valkey instance.
var (
	valkeyClientOnce sync.Once
	valkeyClient     valkey.Client
)

func provideValkeyClient(cfg *config.Config, logger *slog.Logger) valkey.Client {
	valkeyClientOnce.Do(func() {
		if !cfg.Sync.Redis.Enabled {
			return
		}
		opt, err := buildValkeyOptions(cfg.Sync.Redis.Addr)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to in-process cache/queue", "error", err)
			return
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to in-process cache/queue", "error", err)
			return
		}
		logger.Info("valkey enabled", "addr", cfg.Sync.Redis.Addr)
		valkeyClient = client
	})
	return valkeyClient
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	addr = strings.TrimSpace(addr)
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(addr, "://") {
		opt, err = valkey.ParseURL(addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:             cfg.Auth.JWTSecret,
		AccessTokenTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:    cfg.Auth.RefreshTokenTTL,
		MaxActiveRefreshes: cfg.Auth.MaxActiveRefreshes,
		InactiveCleanupAge: cfg.Auth.InactiveCleanupAge,
		Google: auth.GoogleConfig{
			ClientID:             cfg.Auth.Google.ClientID,
			ClientSecret:         cfg.Auth.Google.ClientSecret,
			RedirectURL:          cfg.Auth.Google.RedirectURL,
			TokenEncryptionKey:   cfg.Auth.Google.TokenEncryptionKey,
			PostLoginRedirectURL: cfg.Auth.Google.PostLoginRedirectURL,
		},
	}
}

func provideAuthRepository(cfg *config.Config, logger *slog.Logger) auth.Repository {
	pool := provideAppPostgresPool(cfg, logger)
	if pool == nil {
		return userrepo.NewMemoryRepository()
	}
	return userrepo.NewPostgresRepository(pool)
}

func provideChatRepository(cfg *config.Config, logger *slog.Logger) chat.Repository {
	pool := provideAppPostgresPool(cfg, logger)
	if pool == nil {
		return repo.NewChatMemory()
	}
	return repo.NewChatPostgres(pool)
}

func provideCurrentWorkspace(cfg *config.Config, logger *slog.Logger) chat.CurrentWorkspace {
	pool := provideAppPostgresPool(cfg, logger)
	if pool == nil {
		return repo.NewWorkspaceMemory()
	}
	return repo.NewWorkspacePostgres(pool)
}

func providePreferenceRepository(cfg *config.Config, logger *slog.Logger) ragpipeline.PreferenceRepository {
	pool := provideAppPostgresPool(cfg, logger)
	if pool == nil {
		return repo.NewPreferenceMemory()
	}
	return repo.NewPreferencePostgres(pool)
}

func provideCredentialsStore(cfg *config.Config, logger *slog.Logger) externalsync.CredentialStore {
	pool := provideAppPostgresPool(cfg, logger)
	if pool == nil {
		return repo.NewCredentialsMemory()
	}
	return repo.NewCredentialsPostgres(pool)
}

func provideIngestRepository(cfg *config.Config, logger *slog.Logger) ingest.Repository {
	pool := provideAppPostgresPool(cfg, logger)
	if pool == nil {
		return repo.NewDataSourceMemory()
	}
	return repo.NewDataSourcePostgres(pool)
}

func provideWidgetRepositories(cfg *config.Config, logger *slog.Logger) (widget.BotRepository, widget.SessionRepository, widget.MessageRepository) {
	pool := provideAppPostgresPool(cfg, logger)
	if pool == nil {
		mem := repo.NewWidgetMemory()
		return mem, mem, mem
	}
	pg := repo.NewWidgetPostgres(pool)
	return pg, pg, pg
}

// provideLLMClient builds the OpenAI-compatible client shared by chat
// generation, translation and embedding. A configured local model
// server without an API key still gets a non-empty placeholder key,
// since most local servers ignore it and the client itself requires one.
func provideLLMClient(cfg *config.Config, logger *slog.Logger) (*chatllm.Client, error) {
	apiKey := cfg.LLM.APIKey
	if apiKey == "" && cfg.LLM.IsLocal {
		apiKey = "local"
	}
	client, err := chatllm.NewClient(apiKey, cfg.LLM.BaseURL)
	if err != nil {
		logger.Error("failed to construct llm client", "error", err)
		return nil, err
	}
	return client, nil
}

func provideEmbedder(client *chatllm.Client, cfg *config.Config, logger *slog.Logger) retrieval.Embedder {
	model := strings.TrimSpace(cfg.LLM.EmbeddingModel)
	if client != nil && model != "" {
		return embedder.NewChatGPTEmbedder(client, model, logger)
	}
	logger.Warn("embedding client unavailable, using deterministic embedder")
	return embedder.NewDeterministicEmbedder(cfg.VectorStore.VectorDim)
}

func provideChatGenerator(client *chatllm.Client) retrieval.Chat {
	return chatllm.NewChatAdapter(client)
}

func provideTranslator(client *chatllm.Client, cfg *config.Config) retrieval.Translator {
	return chatllm.NewTranslatorAdapter(client, cfg.LLM.Model)
}

func provideVectorStore(cfg *config.Config, logger *slog.Logger) retrieval.VectorStore {
	pool := provideVectorPostgresPool(cfg, logger)
	if pool == nil {
		return vectorstore.NewMemoryStore()
	}
	return vectorstore.NewPgVectorStore(pool, cfg.RAG.CollectionName)
}

func provideTrendingCache(cfg *config.Config, logger *slog.Logger) ragpipeline.TrendingCache {
	client := provideValkeyClient(cfg, logger)
	if client == nil {
		return cache.NewMemoryTrendingCache()
	}
	return cache.NewValkeyTrendingCache(client, "trending:", logger)
}

func provideRAGConfig(cfg *config.Config) ragpipeline.Config {
	return ragpipeline.Config{
		SimilarityK:     cfg.RAG.SimilarityK,
		ScoreThreshold:  cfg.RAG.ScoreThreshold,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		DefaultLanguage: cfg.RAG.DefaultLanguage,
	}
}

func provideRagPipeline(
	cfg *config.Config,
	embed retrieval.Embedder,
	store retrieval.VectorStore,
	chatGen retrieval.Chat,
	translator retrieval.Translator,
	preferences ragpipeline.PreferenceRepository,
	trending ragpipeline.TrendingCache,
	logger *slog.Logger,
) ragpipeline.Pipeline {
	return ragpipeline.NewPipeline(provideRAGConfig(cfg), embed, store, chatGen, translator, preferences, trending, logger)
}

func provideIngestor(
	cfg *config.Config,
	embed retrieval.Embedder,
	store retrieval.VectorStore,
	ingestRepo ingest.Repository,
	logger *slog.Logger,
) ingest.Ingestor {
	loader := storage.NewFileLoader(cfg.Data.Directory)
	pattern := splitter.NewPattern()
	return ingest.NewIngestor(loader, pattern, embed, store, ingestRepo, logger)
}

func provideIngestScheduler(ingestRepo ingest.Repository, ingestor ingest.Ingestor, logger *slog.Logger) *ingest.Scheduler {
	return ingest.NewScheduler(ingestRepo, ingestor, logger)
}

func provideBlobStorage(cfg *config.Config, logger *slog.Logger) storage.BlobStorage {
	endpoint := strings.TrimSpace(cfg.Storage.Endpoint)
	accessKey := strings.TrimSpace(cfg.Storage.AccessKey)
	secretKey := strings.TrimSpace(cfg.Storage.SecretKey)
	bucket := strings.TrimSpace(cfg.Storage.Bucket)
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		logger.Info("object storage not fully configured, mirroring disabled")
		return storage.NewMemoryStorage()
	}
	blob, err := storage.NewR2Storage(endpoint, accessKey, secretKey, bucket, cfg.Storage.Region, logger)
	if err != nil {
		logger.Error("failed to initialize object storage, mirroring disabled", "error", err)
		return storage.NewMemoryStorage()
	}
	logger.Info("object storage mirror enabled", "endpoint", endpoint, "bucket", bucket)
	return blob
}

func provideTextWriter(cfg *config.Config, logger *slog.Logger) *storage.MirroringTextWriter {
	primary := storage.NewFileTextWriter(cfg.Data.Directory)
	mirror := provideBlobStorage(cfg, logger)
	return storage.NewMirroringTextWriter(primary, mirror, logger)
}

func provideClickUpClient(cfg *config.Config) *externalclient.ClickUpClient {
	return externalclient.NewClickUpClient(cfg.External.ClickUpAPIBase, cfg.External.ClickUpTimeout)
}

func provideExternalSyncer(
	provider *externalclient.ClickUpClient,
	credentials externalsync.CredentialStore,
	writer *storage.MirroringTextWriter,
	ingestRepo ingest.Repository,
	ingestor ingest.Ingestor,
	logger *slog.Logger,
) externalsync.Syncer {
	return externalsync.NewSyncer(provider, credentials, writer, ingestRepo, ingestor, logger)
}

func provideJobQueue(cfg *config.Config, logger *slog.Logger) externalsync.JobQueue {
	client := provideValkeyClient(cfg, logger)
	if client == nil {
		return queue.NewImmediateQueue(nil)
	}
	return queue.NewValkeyQueue(client, "externalsync:jobs", logger)
}

// handlerSetter is satisfied by both queue implementations; it lets
// the syncer's background scheduler register itself as the consumer
// without the JobQueue interface needing to expose SetHandler.
type handlerSetter interface {
	SetHandler(handler queue.Handler)
}

func provideSyncScheduler(syncer externalsync.Syncer, jobQueue externalsync.JobQueue, logger *slog.Logger) *externalsync.Scheduler {
	scheduler := externalsync.NewScheduler(syncer, jobQueue, logger)
	if setter, ok := jobQueue.(handlerSetter); ok {
		setter.SetHandler(scheduler.RunJob)
	}
	return scheduler
}

func provideWidgetConfig(cfg *config.Config) widget.Config {
	return widget.Config{SessionCap: cfg.Widget.SessionCap}
}

func provideWidgetService(
	cfg *config.Config,
	bots widget.BotRepository,
	sessions widget.SessionRepository,
	messages widget.MessageRepository,
	authSvc auth.Service,
	pipeline ragpipeline.Pipeline,
	logger *slog.Logger,
) widget.Service {
	tokens := adapter.NewWidgetTokenIssuer(authSvc, cfg.Auth.WidgetTokenTTL)
	answerer := adapter.NewWidgetAnswerer(pipeline)
	return widget.NewService(provideWidgetConfig(cfg), bots, sessions, messages, tokens, answerer, logger)
}
