package artifacts

import (
	"context"
	"fmt"
)

// StoreType represents the type of artifact storage backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// FetcherConfig selects and configures a Fetcher backend.
type FetcherConfig struct {
	Type StoreType

	// S3
	Region   string
	Endpoint string

	// Filesystem
	Root string
}

// NewFetcher creates an artifact fetcher for the configured backend.
// An empty Type selects S3.
func NewFetcher(ctx context.Context, cfg FetcherConfig) (Fetcher, error) {
	switch cfg.Type {
	case StoreTypeS3, "":
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		f, err := NewS3Fetcher(ctx, S3FetcherConfig{Region: region, Endpoint: cfg.Endpoint})
		if err != nil {
			return nil, err
		}
		return f, nil
	case StoreTypeGCS:
		return newGCSFetcher(ctx)
	case StoreTypeFS:
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem storage requires a root directory")
		}
		return NewFileFetcher(cfg.Root), nil
	default:
		return nil, fmt.Errorf("unsupported artifact storage type: %s", cfg.Type)
	}
}
