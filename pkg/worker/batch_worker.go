package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	batchsvc "github.com/solarops/document-processor/internal/service/batch"
	"github.com/solarops/document-processor/pkg/logger"
	"github.com/solarops/document-processor/pkg/queue"
)

// reportRetention is how long stored run reports are kept.
const reportRetention = 7 * 24 * time.Hour

// BatchWorker consumes batch OCR jobs and runs them through the batch
// service.
type BatchWorker struct {
	BaseWorker
	service *batchsvc.Service
}

func NewBatchWorker(cfg *Config, service *batchsvc.Service, log logger.Logger) (*BatchWorker, error) {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
		},
	)

	w := &BatchWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		service: service,
	}
	w.mux.HandleFunc(queue.TaskTypeBatchOcr, w.handleBatchOcr)
	return w, nil
}

func (w *BatchWorker) handleBatchOcr(ctx context.Context, t *asynq.Task) error {
	var job queue.BatchJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		w.logger.Error("Failed to unmarshal job",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	w.logger.Info("Processing batch OCR job",
		logger.String("jobId", job.ID),
		logger.String("projectId", job.ProjectID),
		logger.Int("documents", len(job.DocumentIDs)),
	)

	info := t.ResultWriter()
	if _, err := info.Write([]byte(`{"status":"running"}`)); err != nil {
		w.logger.Error("Failed to write job status", logger.Error(err))
	}

	if err := w.service.RunJob(ctx, &job); err != nil {
		if _, writeErr := info.Write([]byte(fmt.Sprintf(`{"status":"failed","error":%q}`, err.Error()))); writeErr != nil {
			w.logger.Error("Failed to write job failure", logger.Error(writeErr))
		}
		return err
	}

	if _, err := info.Write([]byte(`{"status":"completed"}`)); err != nil {
		w.logger.Error("Failed to write job completion", logger.Error(err))
	}
	return nil
}

func (w *BatchWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	// Periodic report retention sweep.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.service.CleanupReports(ctx, reportRetention); err != nil {
					w.logger.Error("Report cleanup failed", logger.Error(err))
				}
			case <-w.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
