package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/timmy/dropsync/internal/domain"
	"github.com/timmy/dropsync/internal/repository"
	"github.com/timmy/dropsync/internal/service"
)

// RunHandler handles run inspection and manual trigger endpoints.
type RunHandler struct {
	scheduler *service.Scheduler
	runs      *repository.RunRepository
	logs      *repository.IngestionLogRepository
}

// NewRunHandler creates a new run handler.
func NewRunHandler(scheduler *service.Scheduler, runs *repository.RunRepository, logs *repository.IngestionLogRepository) *RunHandler {
	return &RunHandler{
		scheduler: scheduler,
		runs:      runs,
		logs:      logs,
	}
}

// ListRuns handles GET /api/v1/runs.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, offset := paging(c)

	runs, err := h.runs.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list runs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /api/v1/runs/:id, returning the run record and its
// per-file log entries.
func (h *RunHandler) GetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := h.runs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Run not found: " + id,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load run: " + err.Error(),
		})
		return
	}

	entries, err := h.logs.ListByRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load run files: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":   run,
		"files": entries,
	})
}

// ListFiles handles GET /api/v1/files with an optional status filter.
func (h *RunHandler) ListFiles(c *gin.Context) {
	limit, offset := paging(c)

	var status domain.FileStatus
	if raw := c.Query("status"); raw != "" {
		status = domain.FileStatus(raw)
		switch status {
		case domain.FileStatusRunning, domain.FileStatusSuccess, domain.FileStatusError, domain.FileStatusSkipped:
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid status filter: " + raw,
			})
			return
		}
	}

	entries, err := h.logs.ListRecent(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list files: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files": entries,
		"count": len(entries),
	})
}

// Trigger handles POST /api/v1/trigger. With ?force=true the run starts
// even while another run is in flight.
func (h *RunHandler) Trigger(c *gin.Context) {
	force := c.Query("force") == "true"

	summary, err := h.scheduler.Trigger(force)
	if err != nil {
		if errors.Is(err, service.ErrRunInFlight) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "A run is already in flight",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Trigger failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":          summary.Record,
		"failed_files": summary.FailedFiles,
	})
}

// paging parses limit/offset query parameters with sane defaults.
func paging(c *gin.Context) (limit, offset int) {
	limit = 20
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
