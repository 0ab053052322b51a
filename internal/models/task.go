package models

// TaskStatus is the finite state of one OCR task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusSuccess    TaskStatus = "success"
	StatusError      TaskStatus = "error"
	StatusSkipped    TaskStatus = "skipped"
	// StatusReview marks an extraction with ambiguous candidates that needs a
	// human decision. No current backend produces it; the state is part of the
	// task contract for forward compatibility.
	StatusReview TaskStatus = "review"
	// StatusAlreadyProcessed is terminal and assigned at batch setup; it never
	// transitions.
	StatusAlreadyProcessed TaskStatus = "already_processed"
)

// Terminal reports whether the status is a final one.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusSkipped, StatusReview, StatusAlreadyProcessed:
		return true
	}
	return false
}

// DateCandidate is one ambiguous extraction candidate. Reserved for the
// review flow; nothing populates it yet.
type DateCandidate struct {
	Date       string  `json:"date"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence,omitempty"`
}

// OcrTask is one unit of batch work per document. Identity fields are set at
// classification time and never change; status, error and the extraction
// payload are written exactly once by the worker that claims the task.
type OcrTask struct {
	DocumentID    string `json:"documentId"`
	DocumentTitle string `json:"documentTitle"`
	ProjectCode   string `json:"projectCode"`
	ProjectID     string `json:"projectId"`
	DocTypeCode   string `json:"docTypeCode,omitempty"`

	Status TaskStatus `json:"status"`
	Error  string     `json:"error,omitempty"`

	ExtractedDates *ExtractedDates `json:"extractedDates,omitempty"`
	ExtractedPvID  string          `json:"extractedPvId,omitempty"`

	AlreadyProcessed bool                `json:"alreadyProcessed"`
	ExistingData     *ExtractionSnapshot `json:"existingData,omitempty"`

	Candidates []DateCandidate `json:"candidates,omitempty"`
}

// Progress aggregates counters for one batch run. Total counts only tasks
// that require active processing; Skipped is pre-seeded with the number of
// already-processed tasks and is not incremented while the run is active.
// Review is reserved and stays zero.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Success   int `json:"success"`
	Error     int `json:"error"`
	Skipped   int `json:"skipped"`
	Review    int `json:"review"`
}

// BatchOptions configures one batch controller instance.
type BatchOptions struct {
	// MaxConcurrent is the worker-pool width.
	MaxConcurrent int `json:"maxConcurrent" yaml:"maxConcurrent"`
	// MaxBatchSize caps how many tasks are admitted into one run.
	MaxBatchSize int `json:"maxBatchSize" yaml:"maxBatchSize"`
	// AutoUpdate asks the extraction backend to persist results back to the
	// document store.
	AutoUpdate bool `json:"autoUpdate" yaml:"autoUpdate"`
	// MaxPages limits how many pages of the source document are scanned.
	MaxPages int `json:"maxPages" yaml:"maxPages"`
	// ForceReprocess bypasses already-processed classification.
	ForceReprocess bool `json:"forceReprocess" yaml:"forceReprocess"`
}

const (
	DefaultMaxConcurrent = 3
	DefaultMaxBatchSize  = 50
	DefaultMaxPages      = 5
)

// Normalized returns a copy with zero values replaced by defaults.
func (o BatchOptions) Normalized() BatchOptions {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = DefaultMaxBatchSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}
