package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/hireflow/internal/api/handler"
	"github.com/timmy/hireflow/internal/api/middleware"
	"github.com/timmy/hireflow/internal/config"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/service"
)

// Services are the backends the HTTP API is served from.
type Services struct {
	Extractor     handler.Extractor
	Analyzer      service.Analyzer
	Batch         handler.BatchRunner
	Matcher       handler.Matcher
	Status        handler.StatusChanger
	Resumes       handler.ResumeLinker
	Notifications handler.NotificationLog
	Settings      handler.SettingsStore
	DB            handler.Pinger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc *Services, cfg *config.ServerConfig, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(svc.DB)
	pipelineHandler := handler.NewPipelineHandler(svc.Extractor, svc.Analyzer, svc.Batch, cfg.MaxUploadMB)
	matchHandler := handler.NewMatchHandler(svc.Matcher)
	applicationHandler := handler.NewApplicationHandler(svc.Status, svc.Resumes)
	notificationHandler := handler.NewNotificationHandler(svc.Status, svc.Notifications)
	settingsHandler := handler.NewSettingsHandler(svc.Settings)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Pipeline
		v1.POST("/extract", pipelineHandler.Extract)
		v1.POST("/analyze", pipelineHandler.Analyze)
		v1.POST("/batch", pipelineHandler.Batch)
		v1.POST("/reanalyze", pipelineHandler.Reanalyze)

		// Matching
		v1.POST("/match", matchHandler.Match)

		// Applications
		v1.POST("/applications/:id/status", applicationHandler.ChangeStatus)
		v1.GET("/applications/:id/history", applicationHandler.History)
		v1.GET("/applications/:id/resume", applicationHandler.Resume)

		// Notifications
		v1.POST("/notifications/status-change", notificationHandler.StatusChange)
		v1.GET("/notifications", notificationHandler.List)
		v1.POST("/notifications/:id/retry", notificationHandler.Retry)

		// Settings
		v1.GET("/settings", settingsHandler.Get)
		v1.PUT("/settings", settingsHandler.Update)
	}

	return r
}
