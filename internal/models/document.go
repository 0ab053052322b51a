package models

// Document is one candidate row from the document store, annotated with
// everything the batch classifier needs to decide whether OCR should run.
type Document struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ProjectID   string `json:"projectId"`
	ProjectCode string `json:"projectCode"`
	DocTypeCode string `json:"docTypeCode,omitempty"`

	// FileKey is the object key of the stored source file. Empty means the
	// document has no source content and cannot be OCR'd.
	FileKey string `json:"fileKey,omitempty"`

	SubmittedAt string `json:"submittedAt,omitempty"`
	IssuedAt    string `json:"issuedAt,omitempty"`
	MeterDate   string `json:"meterDate,omitempty"`
	PvID        string `json:"pvId,omitempty"`
}

// HasFile reports whether the document has a stored source file.
func (d Document) HasFile() bool {
	return d.FileKey != ""
}

// HasExtractedData reports whether a prior extraction already populated the
// document's metadata. Such documents are classified already-processed unless
// a force reprocess is requested.
func (d Document) HasExtractedData() bool {
	return d.SubmittedAt != "" || d.IssuedAt != "" || d.PvID != ""
}

// ExtractedDates holds the three dated fields an extraction can produce.
// Each value is an ISO date string; empty means the extraction found nothing
// for that field.
type ExtractedDates struct {
	SubmittedAt string `json:"submittedAt,omitempty"`
	IssuedAt    string `json:"issuedAt,omitempty"`
	MeterDate   string `json:"meterDate,omitempty"`
}

// IsZero reports whether no date was extracted at all.
func (d ExtractedDates) IsZero() bool {
	return d.SubmittedAt == "" && d.IssuedAt == "" && d.MeterDate == ""
}

// ExtractionSnapshot is the prior extraction state of an already-processed
// document, carried on its task so the UI can show what is on record.
type ExtractionSnapshot struct {
	Dates ExtractedDates `json:"dates"`
	PvID  string         `json:"pvId,omitempty"`
}
