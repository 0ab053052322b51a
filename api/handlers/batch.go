package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solarops/document-processor/internal/batch"
	batchsvc "github.com/solarops/document-processor/internal/service/batch"
	"github.com/solarops/document-processor/pkg/logger"
)

type BatchHandler struct {
	service *batchsvc.Service
	logger  logger.Logger
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewBatchHandler(service *batchsvc.Service, logger logger.Logger) *BatchHandler {
	return &BatchHandler{service: service, logger: logger}
}

// StartBatch launches a batch OCR run in the background and returns its run
// ID. The client polls GetStatus for live progress.
func (h *BatchHandler) StartBatch(c *gin.Context) {
	var req batchsvc.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ProjectID == "" && len(req.DocumentIDs) == 0 {
		h.handleError(c, http.StatusBadRequest, "projectId or documentIds is required", nil)
		return
	}

	runID, err := h.service.StartAsync(req)
	if err != nil {
		if errors.Is(err, batch.ErrRunActive) {
			h.handleError(c, http.StatusConflict, "A batch run is already active", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to start batch run", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"runId": runID})
}

// EnqueueBatch hands the run to the background worker instead of running it
// in-process.
func (h *BatchHandler) EnqueueBatch(c *gin.Context) {
	var req batchsvc.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ProjectID == "" && len(req.DocumentIDs) == 0 {
		h.handleError(c, http.StatusBadRequest, "projectId or documentIds is required", nil)
		return
	}

	jobID, err := h.service.Enqueue(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to enqueue batch job", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobId": jobID})
}

// GetStatus returns the live task list and progress counters.
func (h *BatchHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Snapshot())
}

// GetRun returns a persisted run snapshot by ID.
func (h *BatchHandler) GetRun(c *gin.Context) {
	runID := c.Param("runId")
	if runID == "" {
		h.handleError(c, http.StatusBadRequest, "Run ID is required", nil)
		return
	}

	snap, err := h.service.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Run not found", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// DownloadReport streams the stored JSON report for a finished run.
func (h *BatchHandler) DownloadReport(c *gin.Context) {
	runID := c.Param("runId")
	if runID == "" {
		h.handleError(c, http.StatusBadRequest, "Run ID is required", nil)
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), runID)
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Report not found", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=batch_ocr_%s.json", runID))
	c.Data(http.StatusOK, "application/json", report)
}

// CancelBatch signals the active run to stop. Cancellation is cooperative;
// in-flight extractions abort on their next check.
func (h *BatchHandler) CancelBatch(c *gin.Context) {
	h.service.Cancel()
	c.JSON(http.StatusOK, gin.H{"message": "Cancellation requested"})
}

// ResetBatch clears task list and progress between runs.
func (h *BatchHandler) ResetBatch(c *gin.Context) {
	if err := h.service.Reset(); err != nil {
		if errors.Is(err, batch.ErrRunActive) {
			h.handleError(c, http.StatusConflict, "Cannot reset while a run is active", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to reset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Batch state cleared"})
}

func (h *BatchHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(status, response)
}
