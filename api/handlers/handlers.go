package handlers

import (
	batchsvc "github.com/solarops/document-processor/internal/service/batch"
	"github.com/solarops/document-processor/pkg/logger"
)

type Handlers struct {
	Batch *BatchHandler
}

func NewHandlers(batchService *batchsvc.Service, logger logger.Logger) *Handlers {
	return &Handlers{
		Batch: NewBatchHandler(batchService, logger),
	}
}
