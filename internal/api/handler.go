package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/jobrunner/internal/jobs"
)

// Enqueuer is the slice of an adapter the API needs: inserting new jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, desc *jobs.Descriptor, runAt time.Time) (string, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger *slog.Logger
	Store  Enqueuer

	// HealthCheck reports backing-store health for GET /health; nil means
	// the endpoint only reports process liveness.
	HealthCheck func(ctx context.Context) error
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger      *slog.Logger
	store       Enqueuer
	healthCheck func(ctx context.Context) error
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:      deps.Logger,
		store:       deps.Store,
		healthCheck: deps.HealthCheck,
	}
}

// CreateJobRequest is the POST /api/v1/jobs request body
type CreateJobRequest struct {
	Queue   string            `json:"queue"`
	Handler string            `json:"handler" binding:"required"`
	Args    []json.RawMessage `json:"args"`
	RunAt   *time.Time        `json:"run_at"`
}

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	desc := &jobs.Descriptor{
		Handler: req.Handler,
		Args:    req.Args,
	}

	var runAt time.Time
	if req.RunAt != nil {
		runAt = *req.RunAt
	}

	jobID, err := h.store.Enqueue(c.Request.Context(), req.Queue, desc, runAt)
	if err != nil {
		h.logger.Error("Failed to enqueue job",
			slog.String("handler", req.Handler),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"job_id":  jobID,
		"queue":   req.Queue,
		"handler": req.Handler,
	})
}

// Health handles GET /health
func (h *JobHandler) Health(c *gin.Context) {
	if h.healthCheck != nil {
		if err := h.healthCheck(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
