package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kotobalab/kotoba-backend/internal/http/response"
	apperrors "github.com/kotobalab/kotoba-backend/internal/pkg/errors"
	"github.com/kotobalab/kotoba-backend/internal/services"
)

type JobHandler struct {
	jobs *services.JobService
}

func NewJobHandler(jobs *services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type startJobRequest struct {
	JobType string         `json:"job_type" binding:"required"`
	Payload map[string]any `json:"payload"`
}

// POST /api/jobs
func (h *JobHandler) StartJob(c *gin.Context) {
	var req startJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := h.jobs.Start(c.Request.Context(), req.JobType, req.Payload)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		response.RespondError(c, status, "start_job_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrNotFound) {
			status = http.StatusNotFound
		}
		response.RespondError(c, status, "job_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs?type=relation_build&limit=20
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	jobs, err := h.jobs.Recent(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_jobs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.Cancel(c.Request.Context(), jobID)
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, apperrors.ErrNotFound) {
			status = http.StatusNotFound
		}
		response.RespondError(c, status, "cancel_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
