// Package storage uploads sweep result files to an object store.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ResultStore handles result file storage operations
type ResultStore interface {
	UploadFile(ctx context.Context, key string, path string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}

// Backends
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Config holds configuration for the result store
type Config struct {
	Backend   string
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// downloadExpiry is how long generated download URLs stay valid
const downloadExpiry = 24 * time.Hour

// New creates the result store selected by cfg.Backend
func New(ctx context.Context, cfg Config) (ResultStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}
	switch cfg.Backend {
	case BackendS3, "":
		return NewS3Store(ctx, cfg)
	case BackendMinio:
		return NewMinioStore(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// ObjectKey returns the key a result file of a sweep is stored under
func ObjectKey(sweepID, path string) string {
	return "sweeps/" + sweepID + "/" + filepath.Base(path)
}

// ContentType returns the content type for a result file
func ContentType(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return "text/tab-separated-values", nil
	case ".parquet":
		return "application/vnd.apache.parquet", nil
	case ".png":
		return "image/png", nil
	}
	return "", fmt.Errorf("invalid result file type: %s. Supported types: .txt, .parquet, .png", filepath.Ext(path))
}
