//go:build gcp

package artifacts

import "context"

func newGCSFetcher(ctx context.Context) (Fetcher, error) {
	f, err := NewGCSFetcher(ctx)
	if err != nil {
		return nil, err
	}
	return f, nil
}
