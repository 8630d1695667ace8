package artifacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Fetcher.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher implements Fetcher using AWS S3.
type S3Fetcher struct {
	client S3API
}

// S3FetcherConfig holds configuration for S3Fetcher.
type S3FetcherConfig struct {
	Region   string
	Endpoint string // Optional custom endpoint (for MinIO, LocalStack, etc.)
}

// NewS3Fetcher creates a new S3-backed fetcher from the default AWS credential chain.
func NewS3Fetcher(ctx context.Context, cfg S3FetcherConfig) (*S3Fetcher, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO/LocalStack
		}
	}

	return NewS3FetcherWithClient(s3.NewFromConfig(awsCfg, clientOpts)), nil
}

// NewS3FetcherWithClient wraps an existing client.
func NewS3FetcherWithClient(client S3API) *S3Fetcher {
	return &S3Fetcher{client: client}
}

// Fetch streams the object body to destPath.
func (f *S3Fetcher) Fetch(ctx context.Context, loc Location, destPath string) error {
	result, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return &RetrievalError{Location: loc, Err: fmt.Errorf("%w: %v", ErrObjectNotFound, err)}
		}
		return &RetrievalError{Location: loc, Err: fmt.Errorf("s3 get failed: %w", err)}
	}
	defer func() { _ = result.Body.Close() }()

	if err := writeFile(ctx, destPath, result.Body); err != nil {
		return &RetrievalError{Location: loc, Err: err}
	}
	return nil
}
