//go:build !gcp

package artifacts

import (
	"context"
	"fmt"
)

func newGCSFetcher(ctx context.Context) (Fetcher, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (use -tags gcp)")
}
