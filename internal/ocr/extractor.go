package ocr

import (
	"context"
	"errors"

	"github.com/solarops/document-processor/internal/models"
)

// Failure messages surfaced on task state. The batch runner relies on the
// exact error text, so these are sentinels rather than ad hoc strings.
var (
	// ErrNotAuthenticated means no session credential could be obtained.
	// Never retried.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrCancelled means the run was cancelled before or during the call.
	ErrCancelled = errors.New("cancelled")
	// ErrRetryLimit means all attempts were used without a definitive
	// success or a non-retriable failure.
	ErrRetryLimit = errors.New("retry limit reached")
)

// Request describes one document extraction.
type Request struct {
	DocumentID  string `json:"documentId"`
	MaxPages    int    `json:"maxPages"`
	AutoUpdate  bool   `json:"autoUpdate"`
	DocTypeCode string `json:"docTypeCode,omitempty"`
}

// Result is a successful extraction. Both fields may be empty: confirming
// that a document contains no recognizable dates or identifier is still a
// success, not a failure.
type Result struct {
	Dates models.ExtractedDates `json:"dates"`
	PvID  string                `json:"pvId,omitempty"`
}

// Extractor runs OCR metadata extraction for one document.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Result, error)
}

// RequestError is a non-2xx response from the remote extraction service.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return e.Message
}

// Transient reports whether the status is worth retrying.
func (e *RequestError) Transient() bool {
	switch e.StatusCode {
	case 502, 503, 504:
		return true
	}
	return false
}

// MetadataStore is the slice of the document store the local extraction
// backends need: resolving a document to its stored file and, when
// auto-update is on, persisting results.
type MetadataStore interface {
	FileKey(ctx context.Context, documentID string) (string, error)
	SaveExtraction(ctx context.Context, documentID string, dates models.ExtractedDates, pvID string) error
}

// Date tags used by the remote service's response payload.
const (
	DateTypeSubmission = "submission"
	DateTypeIssue      = "issue"
	DateTypeMeter      = "meter_date"
)
