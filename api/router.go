package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anventec/dlpal/api/handlers"
	"github.com/anventec/dlpal/api/middleware"
	"github.com/anventec/dlpal/internal/app"
	"github.com/anventec/dlpal/internal/domain"
)

// SetupRouter sets up the HTTP router
func SetupRouter(
	orch *app.Orchestrator,
	bus *app.ProgressBus,
	repo domain.HistoryRepository,
	config *domain.Config,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(orch)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		metadataHandler := handlers.NewMetadataHandler(orch, log)
		v1.POST("/metadata", metadataHandler.ResolveMetadata)

		sessionHandler := handlers.NewSessionHandler(orch, log)
		progressHandler := handlers.NewProgressWebSocketHandler(bus, log)
		session := v1.Group("/session")
		{
			session.POST("", sessionHandler.BeginSession)
			session.GET("", sessionHandler.GetSession)
			session.DELETE("", sessionHandler.ResetSession)
			session.GET("/progress", progressHandler.HandleWebSocket)
		}

		historyHandler := handlers.NewHistoryHandler(repo, config.History.ListLimit, log)
		history := v1.Group("/history")
		{
			history.GET("", historyHandler.ListHistory)
			history.GET("/stats", historyHandler.GetStats)
			history.DELETE("/:id", historyHandler.DeleteRecord)
		}
	}

	return router
}
