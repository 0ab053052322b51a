package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/solarops/document-processor/internal/models"
	"github.com/solarops/document-processor/internal/ocr"
	"github.com/solarops/document-processor/pkg/logger"
)

// ErrRunActive is returned when an operation requires an idle controller but
// a run is in flight.
var ErrRunActive = errors.New("batch run already active")

// Summary is the result of one Start call.
type Summary struct {
	// Started is false when no document was eligible and no run happened.
	Started bool `json:"started"`
	// Queued is how many tasks required active processing.
	Queued int `json:"queued"`
	// AlreadyProcessed is how many admitted documents were classified as
	// already carrying extraction data.
	AlreadyProcessed int `json:"alreadyProcessed"`
}

// Controller owns the task list and progress counters for batch OCR runs.
// One run at a time per instance; all state is guarded by a single mutex so
// observers can poll while workers write.
type Controller struct {
	extractor ocr.Extractor
	opts      models.BatchOptions
	logger    logger.Logger

	mu       sync.Mutex
	tasks    []*models.OcrTask
	progress models.Progress
	running  bool
	cancel   context.CancelFunc
}

func NewController(extractor ocr.Extractor, opts models.BatchOptions, log logger.Logger) *Controller {
	return &Controller{
		extractor: extractor,
		opts:      opts.Normalized(),
		logger:    log,
	}
}

// Start classifies the candidate documents, runs the needs-processing subset
// through the worker pool and blocks until every worker has finished. It
// rejects a second concurrent run rather than silently replacing the first
// run's cancellation handle.
func (c *Controller) Start(ctx context.Context, docs []models.Document, forceReprocess bool) (*Summary, error) {
	force := forceReprocess || c.opts.ForceReprocess
	cls := Classify(docs, c.opts, force)

	if len(cls.Tasks) == 0 {
		c.logger.Info("No eligible documents for batch OCR")
		return &Summary{Started: false}, nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		cancel()
		return nil, ErrRunActive
	}
	c.tasks = cls.Tasks
	c.progress = cls.Progress
	c.running = true
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("Starting batch OCR run",
		logger.Int("queued", cls.NeedsProcessing),
		logger.Int("alreadyProcessed", len(cls.Tasks)-cls.NeedsProcessing),
		logger.Bool("forceReprocess", force),
	)

	c.runPool(runCtx, cls.NeedsProcessing)

	c.mu.Lock()
	c.running = false
	c.cancel = nil
	summary := &Summary{
		Started:          true,
		Queued:           cls.NeedsProcessing,
		AlreadyProcessed: len(cls.Tasks) - cls.NeedsProcessing,
	}
	progress := c.progress
	c.mu.Unlock()
	cancel()

	c.logger.Info("Batch OCR run finished",
		logger.Int("completed", progress.Completed),
		logger.Int("success", progress.Success),
		logger.Int("error", progress.Error),
	)
	return summary, nil
}

// runPool drives the needs-processing tasks with bounded parallelism. A
// shared cursor hands each worker the next unclaimed index, so every index
// is claimed exactly once; completion order across tasks is whatever the
// workers make of it.
func (c *Controller) runPool(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	workers := c.opts.MaxConcurrent
	if workers > n {
		workers = n
	}

	var cursor atomic.Int64
	g := new(errgroup.Group)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				idx := int(cursor.Add(1)) - 1
				if idx >= n {
					return nil
				}
				if ctx.Err() != nil {
					// Cancellation still drains the queue so no task is
					// left pending.
					c.finishTask(idx, nil, ocr.ErrCancelled)
					continue
				}
				c.runTask(ctx, idx)
			}
		})
	}
	g.Wait()
}

func (c *Controller) runTask(ctx context.Context, idx int) {
	c.mu.Lock()
	task := c.tasks[idx]
	task.Status = models.StatusProcessing
	req := ocr.Request{
		DocumentID:  task.DocumentID,
		DocTypeCode: task.DocTypeCode,
		MaxPages:    c.opts.MaxPages,
		AutoUpdate:  c.opts.AutoUpdate,
	}
	c.mu.Unlock()

	result, err := c.extractor.Extract(ctx, req)
	c.finishTask(idx, result, err)
}

// finishTask writes the task's terminal state and bumps the counters under
// the controller lock. Completed always increments; success and error track
// the outcome; a cancelled task becomes skipped and counts as neither.
func (c *Controller) finishTask(idx int, result *ocr.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	task := c.tasks[idx]
	switch {
	case err == nil:
		task.Status = models.StatusSuccess
		dates := result.Dates
		task.ExtractedDates = &dates
		task.ExtractedPvID = result.PvID
		c.progress.Success++
	case errors.Is(err, ocr.ErrCancelled):
		task.Status = models.StatusSkipped
		task.Error = ocr.ErrCancelled.Error()
	default:
		task.Status = models.StatusError
		task.Error = err.Error()
		c.progress.Error++
		c.logger.Error("Document extraction failed",
			logger.String("documentId", task.DocumentID),
			logger.String("error", task.Error),
		)
	}
	c.progress.Completed++
}

// Cancel signals the active run's cancellation token. Best effort: in-flight
// requests abort cooperatively, nothing blocks waiting for them.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Reset clears the task list and progress between runs.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrRunActive
	}
	c.tasks = nil
	c.progress = models.Progress{}
	return nil
}

// Running reports whether a run is in flight.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Tasks returns a snapshot of the current task list.
func (c *Controller) Tasks() []models.OcrTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks := make([]models.OcrTask, len(c.tasks))
	for i, t := range c.tasks {
		tasks[i] = *t
	}
	return tasks
}

// Progress returns a snapshot of the current counters.
func (c *Controller) Progress() models.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}
