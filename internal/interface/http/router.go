package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ai-helloworld/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		errorHandlingMiddleware(handler.logger),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	api := router.Group("/api/v1")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", handler.Register)
			authRoutes.POST("/login", handler.Login)
			authRoutes.POST("/refresh", handler.Refresh)
			authRoutes.GET("/google/login", handler.GoogleLogin)
			authRoutes.GET("/google/callback", handler.GoogleCallback)
		}

		chatPool := workerPoolMiddleware(cfg.HTTP.WorkerPool.Size, handler.logger)

		widgetRoutes := api.Group("/widget")
		{
			widgetRoutes.POST("/session/start", handler.StartWidgetSession)
			widgetRoutes.POST("/chat", chatPool, handler.WidgetChat)
		}

		protected := api.Group("/")
		protected.Use(authMiddleware(handler.authSvc))
		{
			protected.POST("/auth/logout", handler.Logout)
			protected.POST("/auth/logout-all", handler.LogoutAll)
			protected.POST("/auth/cleanup-tokens", handler.CleanupTokens)
			protected.GET("/auth/me", handler.Profile)

			protected.POST("/chat", chatPool, handler.Ask)
			protected.GET("/conversations", handler.ListConversations)
			protected.GET("/conversations/:id/messages", handler.ListMessages)
			protected.POST("/messages/:id/feedback", handler.SetFeedback)

			dataSources := protected.Group("/datasources")
			{
				dataSources.POST("/upload", handler.Upload)
				dataSources.POST("/:id/sync", handler.SyncDataSource)
				dataSources.POST("/:id/unsync", handler.UnsyncDataSource)
				dataSources.POST("/sync-all", handler.SyncAllDataSources)
				dataSources.POST("/unsync-all", handler.UnsyncAllDataSources)
				dataSources.POST("/external/:source_id/:provider/tickets/:ticket_id/sync", handler.SyncExternalTicket)
				dataSources.POST("/external/:source_id/:provider/tickets/:ticket_id/unsync", handler.UnsyncExternalTicket)
			}

			protected.POST("/widget/generate", handler.GenerateWidget)
		}
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
