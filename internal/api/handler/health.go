package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/dropsync/internal/service"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	scheduler *service.Scheduler
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(scheduler *service.Scheduler) *HealthHandler {
	return &HealthHandler{scheduler: scheduler}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"job":    string(h.scheduler.LockState()),
	})
}
