package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/solarops/document-processor/pkg/logger"
	"github.com/solarops/document-processor/pkg/storage/minio"
	"github.com/solarops/document-processor/pkg/storage/s3"
)

// Backend selects the object-store implementation.
type Backend string

const (
	BackendS3    Backend = "s3"
	BackendMinio Backend = "minio"
)

// Storage is the object store holding document source files and batch run
// reports.
type Storage interface {
	// Store writes an object and returns its key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get opens an object for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes an object.
	Delete(ctx context.Context, key string) error
	// CleanupBefore deletes objects under prefix last modified before the
	// threshold.
	CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error
}

// NewStorage creates the configured backend.
func NewStorage(backend Backend, log logger.Logger) (Storage, error) {
	switch backend {
	case BackendS3:
		return s3.NewClient(log)
	case BackendMinio:
		return minio.NewClient(log)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}
