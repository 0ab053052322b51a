package batch

import (
	"github.com/solarops/document-processor/internal/models"
)

// Classification is the outcome of batch setup: the ordered task list plus
// the initial progress snapshot. Tasks are ordered needs-processing first,
// already-processed second; NeedsProcessing is the length of the first group.
type Classification struct {
	Tasks           []*models.OcrTask
	NeedsProcessing int
	Progress        models.Progress
}

// Classify partitions the candidate documents for one run.
//
// Documents without a stored source file are dropped outright. Of the rest,
// a document that already carries a submitted date, an issued date or a PV
// identifier is already-processed; everyone else needs processing. With
// forceReprocess every eligible document needs processing. MaxBatchSize caps
// the combined admission, filling needs-processing slots first so a large
// already-processed backlog cannot starve new work.
func Classify(docs []models.Document, opts models.BatchOptions, forceReprocess bool) *Classification {
	opts = opts.Normalized()

	var needs, already []models.Document
	for _, doc := range docs {
		if !doc.HasFile() {
			continue
		}
		if !forceReprocess && doc.HasExtractedData() {
			already = append(already, doc)
			continue
		}
		needs = append(needs, doc)
	}

	if len(needs) > opts.MaxBatchSize {
		needs = needs[:opts.MaxBatchSize]
	}
	if remaining := opts.MaxBatchSize - len(needs); len(already) > remaining {
		already = already[:remaining]
	}

	tasks := make([]*models.OcrTask, 0, len(needs)+len(already))
	for _, doc := range needs {
		tasks = append(tasks, newTask(doc, false))
	}
	for _, doc := range already {
		tasks = append(tasks, newTask(doc, true))
	}

	return &Classification{
		Tasks:           tasks,
		NeedsProcessing: len(needs),
		Progress: models.Progress{
			Total:   len(needs),
			Skipped: len(already),
		},
	}
}

func newTask(doc models.Document, alreadyProcessed bool) *models.OcrTask {
	task := &models.OcrTask{
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		ProjectCode:   doc.ProjectCode,
		ProjectID:     doc.ProjectID,
		DocTypeCode:   doc.DocTypeCode,
		Status:        models.StatusPending,
	}
	if alreadyProcessed {
		task.Status = models.StatusAlreadyProcessed
		task.AlreadyProcessed = true
		task.ExistingData = &models.ExtractionSnapshot{
			Dates: models.ExtractedDates{
				SubmittedAt: doc.SubmittedAt,
				IssuedAt:    doc.IssuedAt,
				MeterDate:   doc.MeterDate,
			},
			PvID: doc.PvID,
		}
	}
	return task
}
