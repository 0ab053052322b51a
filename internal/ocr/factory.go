package ocr

import (
	"context"
	"fmt"

	cfg "github.com/solarops/document-processor/config"
	"github.com/solarops/document-processor/internal/auth"
	"github.com/solarops/document-processor/pkg/logger"
	"github.com/solarops/document-processor/pkg/storage"
)

// NewExtractor builds the configured extraction backend. The remote function
// is the default; tesseract and textract run the extraction in-process for
// deployments without the serverless function.
func NewExtractor(ctx context.Context, store MetadataStore, st storage.Storage, log logger.Logger) (Extractor, error) {
	ocrCfg := cfg.GetOcrConfig()

	switch ocrCfg.Backend {
	case "remote", "":
		if ocrCfg.Endpoint == "" {
			return nil, fmt.Errorf("OCR_ENDPOINT is required for the remote backend")
		}
		return NewClient(ocrCfg.Endpoint, newTokenSource(), ocrCfg.Timeout, log), nil

	case "tesseract":
		return NewTesseractExtractor(store, st, ocrCfg.Languages, log), nil

	case "textract":
		tc := cfg.GetTextractConfig()
		return NewTextractExtractor(ctx, &TextractConfig{
			Region:    tc.Region,
			AccessKey: tc.AccessKey,
			SecretKey: tc.SecretKey,
		}, store, st, log)

	default:
		return nil, fmt.Errorf("unsupported OCR backend: %s", ocrCfg.Backend)
	}
}

func newTokenSource() auth.TokenSource {
	authCfg := cfg.GetAuthConfig()
	if authCfg.Token != "" {
		return auth.NewStaticTokenSource(authCfg.Token)
	}
	return auth.NewSessionTokenSource(authCfg.TokenURL, authCfg.APIKey, authCfg.RefreshToken)
}
