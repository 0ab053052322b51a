package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarops/document-processor/internal/batch"
	"github.com/solarops/document-processor/internal/models"
	"github.com/solarops/document-processor/internal/ocr"
	batchsvc "github.com/solarops/document-processor/internal/service/batch"
	"github.com/solarops/document-processor/pkg/logger"
	"github.com/solarops/document-processor/pkg/queue"
)

type fakeRepo struct {
	docs []models.Document
}

func (r *fakeRepo) ListForProject(ctx context.Context, projectID string) ([]models.Document, error) {
	return r.docs, nil
}

func (r *fakeRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Document, error) {
	return r.docs, nil
}

func (r *fakeRepo) FileKey(ctx context.Context, documentID string) (string, error) {
	return "", fmt.Errorf("not stored")
}

func (r *fakeRepo) SaveExtraction(ctx context.Context, documentID string, dates models.ExtractedDates, pvID string) error {
	return nil
}

type fakeQueue struct {
	mu        sync.Mutex
	jobs      []*queue.BatchJob
	snapshots map[string]*queue.RunSnapshot
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{snapshots: make(map[string]*queue.RunSnapshot)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, job *queue.BatchJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) SaveSnapshot(ctx context.Context, snap *queue.RunSnapshot) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.snapshots[snap.RunID] = snap
	return nil
}

func (q *fakeQueue) GetSnapshot(ctx context.Context, runID string) (*queue.RunSnapshot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	snap, ok := q.snapshots[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return snap, nil
}

func (q *fakeQueue) Close() error { return nil }

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return key, nil
}

func (s *fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStorage) CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error {
	return nil
}

type okExtractor struct{}

func (okExtractor) Extract(ctx context.Context, req ocr.Request) (*ocr.Result, error) {
	return &ocr.Result{Dates: models.ExtractedDates{SubmittedAt: "2024-05-01"}}, nil
}

func newTestRouter(t *testing.T, docs []models.Document) (*gin.Engine, *fakeQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewTestLogger()
	controller := batch.NewController(okExtractor{}, models.BatchOptions{MaxConcurrent: 2}, log)
	q := newFakeQueue()
	service := batchsvc.NewService(&fakeRepo{docs: docs}, controller, q, newFakeStorage(), log)

	r := gin.New()
	h := NewHandlers(service, log)
	v1 := r.Group("/api/v1")
	group := v1.Group("/batch/ocr")
	group.POST("", h.Batch.StartBatch)
	group.POST("/enqueue", h.Batch.EnqueueBatch)
	group.GET("/status", h.Batch.GetStatus)
	group.GET("/runs/:runId", h.Batch.GetRun)
	group.DELETE("", h.Batch.CancelBatch)
	group.POST("/reset", h.Batch.ResetBatch)
	return r, q
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func testDocs(n int) []models.Document {
	var docs []models.Document
	for i := 0; i < n; i++ {
		docs = append(docs, models.Document{
			ID:          fmt.Sprintf("d%d", i),
			Title:       fmt.Sprintf("Document %d", i),
			ProjectID:   "p1",
			ProjectCode: "SOLAR-001",
			FileKey:     fmt.Sprintf("files/d%d.pdf", i),
		})
	}
	return docs
}

func TestStartBatchAccepted(t *testing.T) {
	r, _ := newTestRouter(t, testDocs(3))

	w := postJSON(r, "/api/v1/batch/ocr", `{"projectId":"p1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["runId"])

	// Poll status until the background run settles.
	require.Eventually(t, func() bool {
		sw := httptest.NewRecorder()
		r.ServeHTTP(sw, httptest.NewRequest(http.MethodGet, "/api/v1/batch/ocr/status", nil))
		if sw.Code != http.StatusOK {
			return false
		}
		var snap batchsvc.Snapshot
		if err := json.Unmarshal(sw.Body.Bytes(), &snap); err != nil {
			return false
		}
		return !snap.Running && snap.Progress.Completed == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartBatchValidation(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := postJSON(r, "/api/v1/batch/ocr", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/v1/batch/ocr", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnqueueBatch(t *testing.T) {
	r, q := newTestRouter(t, nil)

	w := postJSON(r, "/api/v1/batch/ocr/enqueue", `{"projectId":"p1","forceReprocess":true}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["jobId"])

	require.Len(t, q.jobs, 1)
	assert.Equal(t, "p1", q.jobs[0].ProjectID)
	assert.True(t, q.jobs[0].ForceReprocess)
}

func TestGetRunNotFound(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/batch/ocr/runs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelAndReset(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/batch/ocr", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w2 := postJSON(r, "/api/v1/batch/ocr/reset", "")
	assert.Equal(t, http.StatusOK, w2.Code)
}
