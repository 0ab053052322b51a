package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solarops/document-processor/internal/models"
	"github.com/solarops/document-processor/pkg/logger"
)

// DocumentRepository reads candidate documents for batch classification and,
// for the in-process extraction backends, resolves file keys and persists
// results.
type DocumentRepository interface {
	ListForProject(ctx context.Context, projectID string) ([]models.Document, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Document, error)
	FileKey(ctx context.Context, documentID string) (string, error)
	SaveExtraction(ctx context.Context, documentID string, dates models.ExtractedDates, pvID string) error
}

type documentRepo struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewDocumentRepository(pool *pgxpool.Pool, log logger.Logger) DocumentRepository {
	return &documentRepo{pool: pool, logger: log}
}

const documentColumns = `
	d.id, d.title, d.project_id, p.code, COALESCE(d.doc_type_code, ''),
	COALESCE(d.file_key, ''), d.submitted_at, d.issued_at, d.meter_date,
	COALESCE(d.pv_id, '')`

func (r *documentRepo) ListForProject(ctx context.Context, projectID string) ([]models.Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		JOIN projects p ON p.id = d.project_id
		WHERE d.project_id = $1
		ORDER BY d.created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (r *documentRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		JOIN projects p ON p.id = d.project_id
		WHERE d.id = ANY($1)
		ORDER BY array_position($1, d.id)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (r *documentRepo) FileKey(ctx context.Context, documentID string) (string, error) {
	var key string
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(file_key, '') FROM documents WHERE id = $1`, documentID,
	).Scan(&key)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file key: %w", err)
	}
	if key == "" {
		return "", fmt.Errorf("document %s has no stored file", documentID)
	}
	return key, nil
}

func (r *documentRepo) SaveExtraction(ctx context.Context, documentID string, dates models.ExtractedDates, pvID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE documents SET
			submitted_at = COALESCE(NULLIF($2, '')::date, submitted_at),
			issued_at    = COALESCE(NULLIF($3, '')::date, issued_at),
			meter_date   = COALESCE(NULLIF($4, '')::date, meter_date),
			pv_id        = COALESCE(NULLIF($5, ''), pv_id),
			updated_at   = now()
		WHERE id = $1`,
		documentID, dates.SubmittedAt, dates.IssuedAt, dates.MeterDate, pvID)
	if err != nil {
		r.logger.Error("Failed to save extraction",
			logger.String("documentId", documentID),
			logger.Error(err),
		)
		return fmt.Errorf("failed to save extraction: %w", err)
	}
	return nil
}

func scanDocuments(rows pgx.Rows) ([]models.Document, error) {
	var docs []models.Document
	for rows.Next() {
		var (
			doc                             models.Document
			submittedAt, issuedAt, meterDay *time.Time
		)
		err := rows.Scan(&doc.ID, &doc.Title, &doc.ProjectID, &doc.ProjectCode,
			&doc.DocTypeCode, &doc.FileKey, &submittedAt, &issuedAt, &meterDay, &doc.PvID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.SubmittedAt = isoOrEmpty(submittedAt)
		doc.IssuedAt = isoOrEmpty(issuedAt)
		doc.MeterDate = isoOrEmpty(meterDay)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

func isoOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
