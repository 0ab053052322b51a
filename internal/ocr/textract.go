package ocr

import (
	"context"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/solarops/document-processor/pkg/logger"
	"github.com/solarops/document-processor/pkg/storage"
)

// Textract query aliases, one per metadata field.
const (
	querySubmission = "submission_date"
	queryIssue      = "issue_date"
	queryMeter      = "meter_date"
	queryPvID       = "pv_id"
)

// TextractExtractor asks AWS Textract targeted questions about the document
// instead of parsing the full text locally.
type TextractExtractor struct {
	client  *textract.Client
	store   MetadataStore
	storage storage.Storage
	logger  logger.Logger
}

// TextractConfig carries the AWS credentials for the extractor.
type TextractConfig struct {
	Region    string
	AccessKey string
	SecretKey string
}

func NewTextractExtractor(ctx context.Context, cfg *TextractConfig, store MetadataStore, st storage.Storage, log logger.Logger) (*TextractExtractor, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &TextractExtractor{
		client:  textract.NewFromConfig(awsCfg),
		store:   store,
		storage: st,
		logger:  log,
	}, nil
}

func (e *TextractExtractor) Extract(ctx context.Context, req Request) (*Result, error) {
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	key, err := e.store.FileKey(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source file: %w", err)
	}

	reader, err := e.storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source file: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	input := &textract.AnalyzeDocumentInput{
		Document:     &types.Document{Bytes: data},
		FeatureTypes: []types.FeatureType{types.FeatureTypeQueries},
		QueriesConfig: &types.QueriesConfig{
			Queries: []types.Query{
				{Text: strPtr("What is the submission or received date?"), Alias: strPtr(querySubmission)},
				{Text: strPtr("What is the issue date of the document?"), Alias: strPtr(queryIssue)},
				{Text: strPtr("What is the meter installation or reading date?"), Alias: strPtr(queryMeter)},
				{Text: strPtr("What is the PV plant identifier?"), Alias: strPtr(queryPvID)},
			},
		},
	}

	out, err := e.client.AnalyzeDocument(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("failed to analyze document: %w", err)
	}

	answers := queryAnswers(out.Blocks)

	var result Result
	if v := answers[querySubmission]; v != "" {
		result.Dates.SubmittedAt = isoDate(v)
	}
	if v := answers[queryIssue]; v != "" {
		result.Dates.IssuedAt = isoDate(v)
	}
	if v := answers[queryMeter]; v != "" {
		result.Dates.MeterDate = isoDate(v)
	}
	result.PvID = answers[queryPvID]

	if req.AutoUpdate && (!result.Dates.IsZero() || result.PvID != "") {
		if err := e.store.SaveExtraction(ctx, req.DocumentID, result.Dates, result.PvID); err != nil {
			return nil, fmt.Errorf("failed to persist extraction: %w", err)
		}
	}

	return &result, nil
}

// queryAnswers joins QUERY blocks to their QUERY_RESULT answers by block id.
func queryAnswers(blocks []types.Block) map[string]string {
	results := make(map[string]string)
	for _, b := range blocks {
		if b.BlockType == types.BlockTypeQueryResult && b.Id != nil && b.Text != nil {
			results[*b.Id] = *b.Text
		}
	}

	answers := make(map[string]string)
	for _, b := range blocks {
		if b.BlockType != types.BlockTypeQuery || b.Query == nil || b.Query.Alias == nil {
			continue
		}
		for _, rel := range b.Relationships {
			if rel.Type != types.RelationshipTypeAnswer {
				continue
			}
			for _, id := range rel.Ids {
				if text, ok := results[id]; ok && answers[*b.Query.Alias] == "" {
					answers[*b.Query.Alias] = text
				}
			}
		}
	}
	return answers
}

// isoDate renders the first recognizable date in s as ISO, or "" when none.
func isoDate(s string) string {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return NormalizeDate(m[1], m[2], m[3])
}

func strPtr(s string) *string { return &s }

var _ Extractor = (*TextractExtractor)(nil)
