package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oxenqueue/oxenqueue/internal/queue"
)

// QueueHandlers exposes the engine's admin surface as gin routes. It
// holds the Controller rather than the raw Store so it can serve the
// debug endpoint alongside the job CRUD endpoints.
type QueueHandlers struct {
	controller *queue.Controller
}

// NewQueueHandlers builds a QueueHandlers bound to controller.
func NewQueueHandlers(controller *queue.Controller) *QueueHandlers {
	return &QueueHandlers{controller: controller}
}

// EnqueueRequest is the wire shape accepted by POST /internal/queue/jobs.
type EnqueueRequest struct {
	JobType   string          `json:"jobType" binding:"required"`
	Body      json.RawMessage `json:"body" binding:"required"`
	Priority  int64           `json:"priority"`
	UniqueKey *uint32         `json:"uniqueKey"`
}

// EnqueueResponse reports the outcome of an enqueue call.
type EnqueueResponse struct {
	ID           int64 `json:"id"`
	Deduplicated bool  `json:"deduplicated"`
}

// Enqueue handles POST /internal/queue/jobs.
func (h *QueueHandlers) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.controller.Enqueue(c.Request.Context(), queue.EnqueueInput{
		JobType:   req.JobType,
		Body:      req.Body,
		Priority:  req.Priority,
		UniqueKey: req.UniqueKey,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, EnqueueResponse{ID: result.ID, Deduplicated: result.Deduplicated})
}

// ListJobsResponse is the paginated response from GET /internal/queue/jobs.
type ListJobsResponse struct {
	Jobs []queue.Job `json:"jobs"`
}

// ListJobs handles GET /internal/queue/jobs, filterable by job_type and
// status (SPEC_FULL.md supplemented feature 3: an operator-facing
// read path the core engine spec leaves external).
func (h *QueueHandlers) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	jobs, err := h.controller.Store().ListJobs(c.Request.Context(), queue.ListJobsInput{
		JobType: c.Query("jobType"),
		Status:  queue.Status(c.Query("status")),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ListJobsResponse{Jobs: jobs})
}

// GetJob handles GET /internal/queue/jobs/:id.
func (h *QueueHandlers) GetJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.controller.Store().GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// DeleteJob handles DELETE /internal/queue/jobs/:id.
func (h *QueueHandlers) DeleteJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	if err := h.controller.Store().Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Debug handles GET /internal/queue/debug, reporting every running
// processor's inflight/fetching/poll-delay state (§4.6).
func (h *QueueHandlers) Debug(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Debug())
}
