package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/solarops/document-processor/internal/auth"
	"github.com/solarops/document-processor/pkg/logger"
)

const defaultMaxAttempts = 3

// Client calls the remote OCR extraction function. Each Extract makes up to
// three attempts: transient server faults (502/503/504) and transport errors
// are retried with exponential backoff, everything else fails immediately.
type Client struct {
	endpoint    string
	tokens      auth.TokenSource
	httpClient  *http.Client
	logger      logger.Logger
	maxAttempts int
	backoff     func(attempt int) time.Duration
}

// ClientOption mutates the client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff replaces the backoff schedule. Tests use this to avoid real
// sleeps.
func WithBackoff(f func(attempt int) time.Duration) ClientOption {
	return func(c *Client) { c.backoff = f }
}

// NewClient creates a remote extraction client.
func NewClient(endpoint string, tokens auth.TokenSource, timeout time.Duration, log logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		tokens:      tokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      log,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// defaultBackoff waits 2^attempt seconds: 2s after attempt 1, 4s after
// attempt 2. Attempt 3 is the last, so there is no third wait.
func defaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

type extractResponse struct {
	ExtractedDates []struct {
		Date string `json:"date"`
		Type string `json:"type"`
	} `json:"extractedDates"`
	PvID  string `json:"pvId,omitempty"`
	Error string `json:"error,omitempty"`
}

// Extract implements Extractor.
func (c *Client) Extract(ctx context.Context, req Request) (*Result, error) {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}

		// A fresh credential per attempt; a stale one from a previous
		// attempt may have expired during backoff.
		token, err := c.tokens.Token(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrCancelled
			}
			return nil, ErrNotAuthenticated
		}

		result, err := c.attempt(ctx, token, req)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}

		retriable := true
		if reqErr, ok := err.(*RequestError); ok {
			retriable = reqErr.Transient()
		}
		if !retriable || attempt == c.maxAttempts {
			return nil, err
		}

		delay := c.backoff(attempt)
		c.logger.Warn("extraction attempt failed, retrying",
			logger.String("documentId", req.DocumentID),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", delay),
			logger.Error(err),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, ErrCancelled
		}
	}
	return nil, ErrRetryLimit
}

func (c *Client) attempt(ctx context.Context, token string, req Request) (*Result, error) {
	payload := map[string]interface{}{
		"documentId": req.DocumentID,
		"maxPages":   req.MaxPages,
		"autoUpdate": req.AutoUpdate,
	}
	if req.DocTypeCode != "" {
		payload["docTypeCode"] = req.DocTypeCode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Transport-level failure, retried by the caller.
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp)
	}

	var er extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}

	result := &Result{PvID: er.PvID}
	for _, d := range er.ExtractedDates {
		switch d.Type {
		case DateTypeSubmission:
			result.Dates.SubmittedAt = d.Date
		case DateTypeIssue:
			result.Dates.IssuedAt = d.Date
		case DateTypeMeter:
			result.Dates.MeterDate = d.Date
		}
	}
	return result, nil
}

// responseError maps a non-2xx response to a RequestError, preferring the
// body's error message over a status-derived one.
func responseError(resp *http.Response) *RequestError {
	reqErr := &RequestError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return reqErr
	}
	var er extractResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		reqErr.Message = er.Error
	}
	return reqErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Extractor = (*Client)(nil)
