package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solarops/document-processor/internal/batch"
	"github.com/solarops/document-processor/internal/models"
	"github.com/solarops/document-processor/internal/repository"
	"github.com/solarops/document-processor/pkg/logger"
	"github.com/solarops/document-processor/pkg/queue"
	"github.com/solarops/document-processor/pkg/storage"
)

// reportPrefix is where finished run reports live in object storage.
const reportPrefix = "reports/"

// StartRequest selects the candidate documents for a run. DocumentIDs wins
// over ProjectID when both are set.
type StartRequest struct {
	ProjectID      string   `json:"projectId,omitempty"`
	DocumentIDs    []string `json:"documentIds,omitempty"`
	ForceReprocess bool     `json:"forceReprocess"`
}

// RunResult is what a start call reports back.
type RunResult struct {
	RunID   string        `json:"runId"`
	Summary batch.Summary `json:"summary"`
}

// Snapshot is the live view of the controller for pollers.
type Snapshot struct {
	RunID    string           `json:"runId,omitempty"`
	Running  bool             `json:"running"`
	Progress models.Progress  `json:"progress"`
	Tasks    []models.OcrTask `json:"tasks"`
}

// Service wires the document store, the batch controller, the job queue and
// report storage together.
type Service struct {
	repo       repository.DocumentRepository
	controller *batch.Controller
	queue      queue.Queue
	storage    storage.Storage
	logger     logger.Logger

	mu    sync.Mutex
	runID string
}

func NewService(repo repository.DocumentRepository, controller *batch.Controller, q queue.Queue, st storage.Storage, log logger.Logger) *Service {
	return &Service{
		repo:       repo,
		controller: controller,
		queue:      q,
		storage:    st,
		logger:     log,
	}
}

// Start loads the candidate documents, runs the batch synchronously and
// persists the final snapshot and report. Concurrent starts are rejected by
// the controller.
func (s *Service) Start(ctx context.Context, req StartRequest) (*RunResult, error) {
	docs, err := s.loadDocuments(ctx, req)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	startedAt := time.Now()

	s.mu.Lock()
	s.runID = runID
	s.mu.Unlock()

	summary, err := s.controller.Start(ctx, docs, req.ForceReprocess)
	if err != nil {
		return nil, err
	}

	if summary.Started {
		s.persistRun(runID, startedAt)
	}

	return &RunResult{RunID: runID, Summary: *summary}, nil
}

// StartAsync launches the run in the background and returns its ID right
// away; callers poll Snapshot or the persisted run state.
func (s *Service) StartAsync(req StartRequest) (string, error) {
	if s.controller.Running() {
		return "", batch.ErrRunActive
	}

	runID := uuid.New().String()
	go func() {
		// Detached from the caller's request context: the run outlives the
		// HTTP request that started it.
		ctx := context.Background()

		docs, err := s.loadDocuments(ctx, req)
		if err != nil {
			s.logger.Error("Failed to load documents for batch run",
				logger.String("runId", runID),
				logger.Error(err),
			)
			return
		}

		startedAt := time.Now()
		s.mu.Lock()
		s.runID = runID
		s.mu.Unlock()

		summary, err := s.controller.Start(ctx, docs, req.ForceReprocess)
		if err != nil {
			s.logger.Error("Batch run failed to start",
				logger.String("runId", runID),
				logger.Error(err),
			)
			return
		}
		if summary.Started {
			s.persistRun(runID, startedAt)
		}
	}()
	return runID, nil
}

// Enqueue hands the run to the worker via the job queue.
func (s *Service) Enqueue(ctx context.Context, req StartRequest) (string, error) {
	job := &queue.BatchJob{
		ID:             uuid.New().String(),
		ProjectID:      req.ProjectID,
		DocumentIDs:    req.DocumentIDs,
		ForceReprocess: req.ForceReprocess,
		CreatedAt:      time.Now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", err
	}
	s.logger.Info("Batch OCR job enqueued",
		logger.String("jobId", job.ID),
		logger.String("projectId", job.ProjectID),
	)
	return job.ID, nil
}

// RunJob executes an enqueued batch job; called by the worker handler.
func (s *Service) RunJob(ctx context.Context, job *queue.BatchJob) error {
	docs, err := s.loadDocuments(ctx, StartRequest{
		ProjectID:   job.ProjectID,
		DocumentIDs: job.DocumentIDs,
	})
	if err != nil {
		return err
	}

	startedAt := time.Now()
	s.mu.Lock()
	s.runID = job.ID
	s.mu.Unlock()

	summary, err := s.controller.Start(ctx, docs, job.ForceReprocess)
	if err != nil {
		return err
	}
	if summary.Started {
		s.persistRun(job.ID, startedAt)
	}
	return nil
}

// Snapshot returns the live controller state.
func (s *Service) Snapshot() *Snapshot {
	s.mu.Lock()
	runID := s.runID
	s.mu.Unlock()

	return &Snapshot{
		RunID:    runID,
		Running:  s.controller.Running(),
		Progress: s.controller.Progress(),
		Tasks:    s.controller.Tasks(),
	}
}

// Cancel signals the active run.
func (s *Service) Cancel() {
	s.controller.Cancel()
}

// Reset clears controller state between runs.
func (s *Service) Reset() error {
	if err := s.controller.Reset(); err != nil {
		return err
	}
	s.mu.Lock()
	s.runID = ""
	s.mu.Unlock()
	return nil
}

// GetRun fetches a persisted run snapshot.
func (s *Service) GetRun(ctx context.Context, runID string) (*queue.RunSnapshot, error) {
	return s.queue.GetSnapshot(ctx, runID)
}

// GetReport fetches a stored run report document.
func (s *Service) GetReport(ctx context.Context, runID string) ([]byte, error) {
	reader, err := s.storage.Get(ctx, reportKey(runID))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return buf.Bytes(), nil
}

// CleanupReports deletes run reports older than the retention period.
func (s *Service) CleanupReports(ctx context.Context, retention time.Duration) error {
	threshold := time.Now().Add(-retention)
	if err := s.storage.CleanupBefore(ctx, reportPrefix, threshold); err != nil {
		return fmt.Errorf("failed to cleanup reports: %w", err)
	}
	s.logger.Info("Completed report cleanup", logger.Time("threshold", threshold))
	return nil
}

func (s *Service) loadDocuments(ctx context.Context, req StartRequest) ([]models.Document, error) {
	if len(req.DocumentIDs) > 0 {
		return s.repo.ListByIDs(ctx, req.DocumentIDs)
	}
	if req.ProjectID != "" {
		return s.repo.ListForProject(ctx, req.ProjectID)
	}
	return nil, fmt.Errorf("either projectId or documentIds is required")
}

// persistRun saves the finished run to redis and writes the JSON report to
// object storage. Both are best effort; the in-memory state is the source of
// truth for the live UI.
func (s *Service) persistRun(runID string, startedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap := &queue.RunSnapshot{
		RunID:      runID,
		Status:     "completed",
		Progress:   s.controller.Progress(),
		Tasks:      s.controller.Tasks(),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}

	if err := s.queue.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Error("Failed to save run snapshot",
			logger.String("runId", runID),
			logger.Error(err),
		)
	}

	report, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("Failed to marshal run report", logger.Error(err))
		return
	}
	if _, err := s.storage.Store(ctx, bytes.NewReader(report), reportKey(runID)); err != nil {
		s.logger.Error("Failed to store run report",
			logger.String("runId", runID),
			logger.Error(err),
		)
	}
}

func reportKey(runID string) string {
	return reportPrefix + runID + ".json"
}
