//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/ai-helloworld/internal/bootstrap"
	"github.com/yanqian/ai-helloworld/internal/domain/auth"
	"github.com/yanqian/ai-helloworld/internal/domain/chat"
	"github.com/yanqian/ai-helloworld/internal/infra/config"
	"github.com/yanqian/ai-helloworld/internal/infra/interactionlog"
	httpiface "github.com/yanqian/ai-helloworld/internal/interface/http"
	"github.com/yanqian/ai-helloworld/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,

		provideAuthConfig,
		provideAuthRepository,
		auth.NewService,

		provideLLMClient,
		provideEmbedder,
		provideVectorStore,
		provideChatGenerator,
		provideTranslator,
		providePreferenceRepository,
		provideTrendingCache,
		provideRagPipeline,

		provideChatRepository,
		provideCurrentWorkspace,
		interactionlog.NewJSONLLogger,
		chat.NewService,

		provideIngestRepository,
		provideIngestor,
		provideIngestScheduler,

		provideTextWriter,
		provideCredentialsStore,
		provideClickUpClient,
		provideExternalSyncer,
		provideJobQueue,
		provideSyncScheduler,

		provideWidgetRepositories,
		provideWidgetService,

		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
