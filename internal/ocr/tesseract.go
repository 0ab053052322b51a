package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"
	"github.com/otiai10/gosseract/v2"

	"github.com/solarops/document-processor/pkg/logger"
	"github.com/solarops/document-processor/pkg/storage"
)

// TesseractExtractor runs OCR locally instead of calling the remote
// function: it fetches the document's source file from object storage,
// pulls text out of it (native text layer for PDFs, tesseract for images)
// and mines the text for dates and the PV identifier.
type TesseractExtractor struct {
	store     MetadataStore
	storage   storage.Storage
	languages []string
	logger    logger.Logger
}

func NewTesseractExtractor(store MetadataStore, st storage.Storage, languages []string, log logger.Logger) *TesseractExtractor {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractExtractor{store: store, storage: st, languages: languages, logger: log}
}

func (e *TesseractExtractor) Extract(ctx context.Context, req Request) (*Result, error) {
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

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	var text string
	switch strings.ToLower(filepath.Ext(key)) {
	case ".pdf":
		text, err = e.pdfText(ctx, content, req.MaxPages)
	default:
		text, err = e.imageText(content)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, err
	}

	result := ParseText(text)

	if req.AutoUpdate && (!result.Dates.IsZero() || result.PvID != "") {
		if err := e.store.SaveExtraction(ctx, req.DocumentID, result.Dates, result.PvID); err != nil {
			e.logger.Error("Failed to persist extraction",
				logger.String("documentId", req.DocumentID),
				logger.Error(err),
			)
			return nil, fmt.Errorf("failed to persist extraction: %w", err)
		}
	}

	return &result, nil
}

// pdfText reads the text layer of the first maxPages pages.
func (e *TesseractExtractor) pdfText(ctx context.Context, content []byte, maxPages int) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	pages := pdfReader.NumPage()
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("Failed to read pdf page",
				logger.Int("page", i),
				logger.Error(err),
			)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// imageText preprocesses the scan and runs tesseract over it.
func (e *TesseractExtractor) imageText(content []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	processed := preprocess(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, processed, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("failed to set languages: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return text, nil
}

// preprocess improves OCR accuracy on photographed or faxed scans.
func preprocess(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 20)
	out = imaging.Sharpen(out, 1.0)
	return out
}

var _ Extractor = (*TesseractExtractor)(nil)
