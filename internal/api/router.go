package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/dropsync/internal/api/handler"
	"github.com/timmy/dropsync/internal/api/middleware"
	"github.com/timmy/dropsync/internal/logger"
	"github.com/timmy/dropsync/internal/repository"
	"github.com/timmy/dropsync/internal/service"
)

// SetupRouter configures the Gin router with the ops/status routes
func SetupRouter(
	scheduler *service.Scheduler,
	runs *repository.RunRepository,
	logs *repository.IngestionLogRepository,
	log *logger.Logger,
	mode string,
) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))

	healthHandler := handler.NewHealthHandler(scheduler)
	runHandler := handler.NewRunHandler(scheduler, runs, logs)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/runs", runHandler.ListRuns)
		v1.GET("/runs/:id", runHandler.GetRun)
		v1.GET("/files", runHandler.ListFiles)
		v1.POST("/trigger", runHandler.Trigger)
	}

	return r
}
