package config

import (
	"sync"
	"time"
)

var (
	ocrOnce   sync.Once
	ocrConfig *OcrConfig
)

// OcrConfig selects and configures the extraction backend.
type OcrConfig struct {
	// Backend is one of "remote", "tesseract", "textract".
	Backend string
	// Endpoint is the remote OCR function URL.
	Endpoint string
	// Timeout bounds a single extraction HTTP call.
	Timeout time.Duration
	// Languages passed to the local tesseract backend.
	Languages []string
}

func GetOcrConfig() *OcrConfig {
	ocrOnce.Do(func() {
		loadEnv()

		ocrConfig = &OcrConfig{
			Backend:   getEnv("OCR_BACKEND", "remote"),
			Endpoint:  getEnv("OCR_ENDPOINT", ""),
			Timeout:   getEnvDuration("OCR_TIMEOUT", 120*time.Second),
			Languages: []string{getEnv("OCR_LANGUAGES", "eng")},
		}
	})
	return ocrConfig
}
