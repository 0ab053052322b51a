package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarops/document-processor/internal/models"
	"github.com/solarops/document-processor/internal/ocr"
	"github.com/solarops/document-processor/pkg/logger"
)

// fakeExtractor scripts per-document outcomes and counts calls.
type fakeExtractor struct {
	mu       sync.Mutex
	calls    int32
	inflight int32
	maxSeen  int32
	delay    time.Duration
	results  map[string]*ocr.Result
	errs     map[string]error
	block    chan struct{} // when set, Extract waits on it (or ctx)
}

func (f *fakeExtractor) Extract(ctx context.Context, req ocr.Request) (*ocr.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	cur := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		prev := atomic.LoadInt32(&f.maxSeen)
		if cur <= prev || atomic.CompareAndSwapInt32(&f.maxSeen, prev, cur) {
			break
		}
	}

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ocr.ErrCancelled
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ocr.ErrCancelled
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[req.DocumentID]; ok {
		return nil, err
	}
	if res, ok := f.results[req.DocumentID]; ok {
		return res, nil
	}
	return &ocr.Result{}, nil
}

func pendingDocs(n int) []models.Document {
	var docs []models.Document
	for i := 0; i < n; i++ {
		docs = append(docs, doc(fmt.Sprintf("d%d", i), true, ""))
	}
	return docs
}

func newTestController(ext ocr.Extractor, opts models.BatchOptions) *Controller {
	return NewController(ext, opts, logger.NewTestLogger())
}

func TestStartProcessesAllTasks(t *testing.T) {
	ext := &fakeExtractor{
		results: map[string]*ocr.Result{
			"d0": {Dates: models.ExtractedDates{SubmittedAt: "2024-05-01"}, PvID: "PV-9001"},
		},
	}
	c := newTestController(ext, models.BatchOptions{MaxConcurrent: 3})

	summary, err := c.Start(context.Background(), pendingDocs(5), false)
	require.NoError(t, err)

	assert.True(t, summary.Started)
	assert.Equal(t, 5, summary.Queued)
	assert.Equal(t, 0, summary.AlreadyProcessed)

	progress := c.Progress()
	assert.Equal(t, 5, progress.Total)
	assert.Equal(t, 5, progress.Completed)
	assert.Equal(t, 5, progress.Success)
	assert.Equal(t, 0, progress.Error)

	tasks := c.Tasks()
	require.Len(t, tasks, 5)
	for _, task := range tasks {
		assert.True(t, task.Status.Terminal(), "task %s not terminal: %s", task.DocumentID, task.Status)
	}
	require.NotNil(t, tasks[0].ExtractedDates)
	assert.Equal(t, "2024-05-01", tasks[0].ExtractedDates.SubmittedAt)
	assert.Equal(t, "PV-9001", tasks[0].ExtractedPvID)
	assert.False(t, c.Running())
}

func TestStartMixedOutcomes(t *testing.T) {
	ext := &fakeExtractor{
		results: map[string]*ocr.Result{
			"d0": {Dates: models.ExtractedDates{IssuedAt: "2024-02-02"}},
		},
		errs: map[string]error{
			"d1": &ocr.RequestError{StatusCode: 404, Message: "document not found"},
			"d2": errors.New("connection refused"),
		},
	}
	c := newTestController(ext, models.BatchOptions{MaxConcurrent: 3})

	_, err := c.Start(context.Background(), pendingDocs(3), false)
	require.NoError(t, err)

	progress := c.Progress()
	assert.Equal(t, 3, progress.Completed)
	assert.Equal(t, 1, progress.Success)
	assert.Equal(t, 2, progress.Error)

	tasks := c.Tasks()
	assert.Equal(t, models.StatusSuccess, tasks[0].Status)
	assert.Equal(t, models.StatusError, tasks[1].Status)
	assert.Equal(t, "document not found", tasks[1].Error)
	assert.Equal(t, models.StatusError, tasks[2].Status)
	assert.Equal(t, "connection refused", tasks[2].Error)
}

func TestConcurrencyBound(t *testing.T) {
	ext := &fakeExtractor{delay: 20 * time.Millisecond}
	c := newTestController(ext, models.BatchOptions{MaxConcurrent: 2})

	_, err := c.Start(context.Background(), pendingDocs(10), false)
	require.NoError(t, err)

	assert.Equal(t, int32(10), atomic.LoadInt32(&ext.calls))
	assert.LessOrEqual(t, atomic.LoadInt32(&ext.maxSeen), int32(2))
}

func TestCancelledBeforeClaim(t *testing.T) {
	ext := &fakeExtractor{}
	c := newTestController(ext, models.BatchOptions{MaxConcurrent: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := c.Start(ctx, pendingDocs(4), false)
	require.NoError(t, err)
	assert.True(t, summary.Started)

	// No extraction call was made; every task drained to skipped.
	assert.Equal(t, int32(0), atomic.LoadInt32(&ext.calls))
	for _, task := range c.Tasks() {
		assert.Equal(t, models.StatusSkipped, task.Status)
		assert.Equal(t, "cancelled", task.Error)
	}

	progress := c.Progress()
	assert.Equal(t, 4, progress.Completed)
	assert.Equal(t, 0, progress.Success)
	assert.Equal(t, 0, progress.Error)
}

func TestCancelMidRun(t *testing.T) {
	ext := &fakeExtractor{block: make(chan struct{})}
	c := newTestController(ext, models.BatchOptions{MaxConcurrent: 2})

	done := make(chan *Summary, 1)
	go func() {
		summary, err := c.Start(context.Background(), pendingDocs(6), false)
		require.NoError(t, err)
		done <- summary
	}()

	// Wait until workers are in flight, then cancel.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ext.inflight) == 2
	}, time.Second, time.Millisecond)
	c.Cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not settle after cancel")
	}

	for _, task := range c.Tasks() {
		assert.Equal(t, models.StatusSkipped, task.Status)
		assert.Equal(t, "cancelled", task.Error)
	}
	assert.Equal(t, 6, c.Progress().Completed)
}

func TestNoEligibleDocuments(t *testing.T) {
	ext := &fakeExtractor{}
	c := newTestController(ext, models.BatchOptions{})

	summary, err := c.Start(context.Background(), []models.Document{
		doc("a", false, ""),
	}, false)
	require.NoError(t, err)

	assert.False(t, summary.Started)
	assert.Empty(t, c.Tasks())
	assert.Equal(t, int32(0), atomic.LoadInt32(&ext.calls))
}

func TestAlreadyProcessedOnlyBatch(t *testing.T) {
	ext := &fakeExtractor{}
	c := newTestController(ext, models.BatchOptions{})

	var docs []models.Document
	for i := 0; i < 5; i++ {
		docs = append(docs, doc(fmt.Sprintf("a%d", i), true, "2024-01-01"))
	}

	summary, err := c.Start(context.Background(), docs, false)
	require.NoError(t, err)

	assert.True(t, summary.Started)
	assert.Equal(t, 0, summary.Queued)
	assert.Equal(t, 5, summary.AlreadyProcessed)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ext.calls))

	progress := c.Progress()
	assert.Equal(t, 0, progress.Total)
	assert.Equal(t, 5, progress.Skipped)
	assert.Equal(t, 0, progress.Completed)
}

func TestConcurrentStartRejected(t *testing.T) {
	ext := &fakeExtractor{block: make(chan struct{})}
	c := newTestController(ext, models.BatchOptions{MaxConcurrent: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Start(context.Background(), pendingDocs(2), false)
		require.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return c.Running() }, time.Second, time.Millisecond)

	_, err := c.Start(context.Background(), pendingDocs(2), false)
	assert.ErrorIs(t, err, ErrRunActive)

	close(ext.block)
	<-done
}

func TestResetGuardsActiveRun(t *testing.T) {
	ext := &fakeExtractor{block: make(chan struct{})}
	c := newTestController(ext, models.BatchOptions{MaxConcurrent: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Start(context.Background(), pendingDocs(1), false)
	}()

	require.Eventually(t, func() bool { return c.Running() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, c.Reset(), ErrRunActive)

	close(ext.block)
	<-done

	require.NoError(t, c.Reset())
	assert.Empty(t, c.Tasks())
	assert.Equal(t, models.Progress{}, c.Progress())
}
