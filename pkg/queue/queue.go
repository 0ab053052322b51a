package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/solarops/document-processor/internal/models"
)

// TaskTypeBatchOcr is the asynq task type for a project-wide batch OCR job.
const TaskTypeBatchOcr = "batch:ocr"

// snapshotTTL keeps finished run snapshots around for a day.
const snapshotTTL = 24 * time.Hour

// BatchJob is an enqueued batch OCR run. Either ProjectID or DocumentIDs
// selects the candidate set.
type BatchJob struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"projectId,omitempty"`
	DocumentIDs    []string  `json:"documentIds,omitempty"`
	ForceReprocess bool      `json:"forceReprocess"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RunSnapshot is the persisted state of one batch run, saved to redis so the
// UI can read results after the run (and after a server restart).
type RunSnapshot struct {
	RunID      string           `json:"runId"`
	Status     string           `json:"status"` // running, completed, failed
	Progress   models.Progress  `json:"progress"`
	Tasks      []models.OcrTask `json:"tasks,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt,omitempty"`
}

// Queue enqueues batch jobs and persists run snapshots.
type Queue interface {
	Enqueue(ctx context.Context, job *BatchJob) error
	SaveSnapshot(ctx context.Context, snap *RunSnapshot) error
	GetSnapshot(ctx context.Context, runID string) (*RunSnapshot, error)
	Close() error
}

// Config defines the queue's redis settings.
type Config struct {
	RedisAddr string
	RedisDB   int
}

// AsynqQueue backs Queue with asynq for job delivery and plain redis for
// snapshots.
type AsynqQueue struct {
	client *asynq.Client
	redis  *redis.Client
}

func NewAsynqQueue(cfg *Config) (*AsynqQueue, error) {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}

	return &AsynqQueue{
		client: asynq.NewClient(redisOpt),
		redis:  redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
	}, nil
}

// Enqueue schedules a batch job for the worker. Retry is left to the
// orchestrator itself; a failed handler run is not re-delivered.
func (q *AsynqQueue) Enqueue(ctx context.Context, job *BatchJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	t := asynq.NewTask(TaskTypeBatchOcr, payload,
		asynq.TaskID(job.ID),
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("default"),
	)
	if _, err := q.client.EnqueueContext(ctx, t); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (q *AsynqQueue) SaveSnapshot(ctx context.Context, snap *RunSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := q.redis.Set(ctx, snapshotKey(snap.RunID), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (q *AsynqQueue) GetSnapshot(ctx context.Context, runID string) (*RunSnapshot, error) {
	data, err := q.redis.Get(ctx, snapshotKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snap RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (q *AsynqQueue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.redis.Close()
}

func snapshotKey(runID string) string {
	return fmt.Sprintf("batch_ocr_run:%s", runID)
}
