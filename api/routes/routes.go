package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solarops/document-processor/api/handlers"
	"github.com/solarops/document-processor/api/middleware"
)

// SetupRoutes wires all API routes.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	ocr := v1.Group("/batch/ocr")
	{
		ocr.POST("", h.Batch.StartBatch)
		ocr.POST("/enqueue", h.Batch.EnqueueBatch)
		ocr.GET("/status", h.Batch.GetStatus)
		ocr.GET("/runs/:runId", h.Batch.GetRun)
		ocr.GET("/runs/:runId/report", h.Batch.DownloadReport)
		ocr.DELETE("", h.Batch.CancelBatch)
		ocr.POST("/reset", h.Batch.ResetBatch)
	}
}
