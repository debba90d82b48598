package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database/repository"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/workflow"
)

type RunHandler struct {
	engine     *workflow.Engine
	executions *repository.ExecutionRepository
}

func NewRunHandler(engine *workflow.Engine, executions *repository.ExecutionRepository) *RunHandler {
	return &RunHandler{engine: engine, executions: executions}
}

// StartRunRequest is the payload for launching a workflow run.
type StartRunRequest struct {
	WorkflowID string   `json:"workflow_id" binding:"required"`
	AccountID  string   `json:"account_id" binding:"required"`
	LeadIDs    []string `json:"lead_ids" binding:"required,min=1"`
}

// StartRun launches a workflow run over the given leads. The run executes in
// the background; the created run record is returned immediately.
func (h *RunHandler) StartRun(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	run, err := h.engine.StartRun(c.Request.Context(), req.WorkflowID, req.AccountID, req.LeadIDs)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Workflow or account not found"})
			return
		}
		logrus.Errorf("Failed to start run for workflow %s: %v", req.WorkflowID, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to start run", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, run)
}

// StopRun requests a cooperative stop of a running run. Safe to call on runs
// that already finished.
func (h *RunHandler) StopRun(c *gin.Context) {
	runID := c.Param("id")

	if _, err := h.executions.GetRun(runID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	if err := h.engine.StopRun(runID); err != nil {
		// Already terminal; report current state instead of failing.
		run, getErr := h.executions.GetRun(runID)
		if getErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stop run", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": run.Status, "stopping": false})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"stopping": true})
}

// GetRun returns one run with its counters
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.executions.GetRun(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// ListRuns returns runs newest first
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit > 200 {
		limit = 200
	}

	runs, err := h.executions.GetRuns(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

// GetRunLogs returns a run's log entries in order
func (h *RunHandler) GetRunLogs(c *gin.Context) {
	runID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit > 1000 {
		limit = 1000
	}

	logs, err := h.executions.GetLogsByRun(runID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get logs", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}
