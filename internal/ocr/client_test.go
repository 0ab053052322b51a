package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarops/document-processor/internal/auth"
	"github.com/solarops/document-processor/pkg/logger"
)

// countingTokens hands out sequenced tokens so tests can verify a fresh
// credential is fetched per attempt.
type countingTokens struct {
	calls int32
	err   error
}

func (c *countingTokens) Token(ctx context.Context) (string, error) {
	n := atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return "", c.err
	}
	return "token-" + string(rune('0'+n)), nil
}

func newTestClient(t *testing.T, endpoint string, tokens auth.TokenSource) (*Client, *[]int) {
	t.Helper()
	var waits []int
	c := NewClient(endpoint, tokens, time.Second, logger.NewTestLogger(),
		WithBackoff(func(attempt int) time.Duration {
			waits = append(waits, attempt)
			return 0
		}),
	)
	return c, &waits
}

func TestDefaultBackoffSchedule(t *testing.T) {
	assert.Equal(t, 2*time.Second, defaultBackoff(1))
	assert.Equal(t, 4*time.Second, defaultBackoff(2))
}

func TestExtractRetriesTransientThenSucceeds(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "doc-1", body["documentId"])
		assert.Equal(t, float64(5), body["maxPages"])
		assert.Equal(t, true, body["autoUpdate"])
		assert.Equal(t, "METER_CERT", body["docTypeCode"])
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer token-")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"extractedDates": []map[string]string{
				{"date": "2024-03-01", "type": "submission"},
				{"date": "2024-04-02", "type": "issue"},
				{"date": "2024-05-03", "type": "meter_date"},
			},
			"pvId": "PV-777",
		})
	}))
	defer srv.Close()

	tokens := &countingTokens{}
	client, waits := newTestClient(t, srv.URL, tokens)

	result, err := client.Extract(context.Background(), Request{
		DocumentID:  "doc-1",
		MaxPages:    5,
		AutoUpdate:  true,
		DocTypeCode: "METER_CERT",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01", result.Dates.SubmittedAt)
	assert.Equal(t, "2024-04-02", result.Dates.IssuedAt)
	assert.Equal(t, "2024-05-03", result.Dates.MeterDate)
	assert.Equal(t, "PV-777", result.PvID)

	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	// One backoff after each failed attempt, numbered 1 then 2.
	assert.Equal(t, []int{1, 2}, *waits)
	// A fresh token per attempt, never cached across attempts.
	assert.Equal(t, int32(3), atomic.LoadInt32(&tokens.calls))
}

func TestExtractPermanentFailureNoRetry(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "document not found"})
	}))
	defer srv.Close()

	client, waits := newTestClient(t, srv.URL, &countingTokens{})

	_, err := client.Extract(context.Background(), Request{DocumentID: "doc-1"})
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 404, reqErr.StatusCode)
	assert.Equal(t, "document not found", err.Error())

	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
	assert.Empty(t, *waits)
}

func TestExtractStatusFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, &countingTokens{})

	_, err := client.Extract(context.Background(), Request{DocumentID: "doc-1"})
	require.Error(t, err)
	// 500 is not in the transient set: fail immediately with the derived
	// message.
	assert.Equal(t, "HTTP 500", err.Error())
}

func TestExtractTransientExhausted(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "upstream busy"})
	}))
	defer srv.Close()

	client, waits := newTestClient(t, srv.URL, &countingTokens{})

	_, err := client.Extract(context.Background(), Request{DocumentID: "doc-1"})
	require.Error(t, err)

	// Attempt 3 is the last: its transient failure is reported as-is, with
	// no third wait.
	assert.Equal(t, "upstream busy", err.Error())
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
	assert.Equal(t, []int{1, 2}, *waits)
}

func TestExtractNetworkErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close() // every dial now fails

	tokens := &countingTokens{}
	client, waits := newTestClient(t, endpoint, tokens)

	_, err := client.Extract(context.Background(), Request{DocumentID: "doc-1"})
	require.Error(t, err)

	assert.Equal(t, []int{1, 2}, *waits)
	assert.Equal(t, int32(3), atomic.LoadInt32(&tokens.calls))
	assert.NotErrorIs(t, err, ErrRetryLimit)
}

func TestExtractNotAuthenticated(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer srv.Close()

	client, waits := newTestClient(t, srv.URL, &countingTokens{err: auth.ErrNoSession})

	_, err := client.Extract(context.Background(), Request{DocumentID: "doc-1"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, "not authenticated", err.Error())

	// Auth failure is fatal for the task: no request, no retry.
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
	assert.Empty(t, *waits)
}

func TestExtractCancelledBeforeAttempt(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, &countingTokens{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Extract(ctx, Request{DocumentID: "doc-1"})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
}

func TestExtractEmptyPayloadIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, &countingTokens{})

	result, err := client.Extract(context.Background(), Request{DocumentID: "doc-1"})
	require.NoError(t, err)

	// Confirming that nothing was found is success with an empty payload,
	// not a failure.
	assert.True(t, result.Dates.IsZero())
	assert.Empty(t, result.PvID)
}

func TestExtractOmitsEmptyDocType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, present := body["docTypeCode"]
		assert.False(t, present)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, &countingTokens{})

	_, err := client.Extract(context.Background(), Request{DocumentID: "doc-1"})
	require.NoError(t, err)
}
