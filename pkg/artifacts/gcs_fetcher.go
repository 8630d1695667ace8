//go:build gcp

package artifacts

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSFetcher implements Fetcher using Google Cloud Storage.
type GCSFetcher struct {
	client *storage.Client
}

// NewGCSFetcher creates a new GCS-backed fetcher.
func NewGCSFetcher(ctx context.Context) (*GCSFetcher, error) {
	// Uses ADC by default
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSFetcher{client: client}, nil
}

// Fetch streams the object to destPath.
func (f *GCSFetcher) Fetch(ctx context.Context, loc Location, destPath string) error {
	reader, err := f.client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return &RetrievalError{Location: loc, Err: fmt.Errorf("%w: %v", ErrObjectNotFound, err)}
		}
		return &RetrievalError{Location: loc, Err: fmt.Errorf("gcs get failed: %w", err)}
	}
	defer func() { _ = reader.Close() }()

	if err := writeFile(ctx, destPath, reader); err != nil {
		return &RetrievalError{Location: loc, Err: err}
	}
	return nil
}

// Close closes the GCS client.
func (f *GCSFetcher) Close() error {
	return f.client.Close()
}
