package artifacts

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFetcher_UnsupportedType(t *testing.T) {
	_, err := NewFetcher(context.Background(), FetcherConfig{Type: "azure"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported artifact storage type")
}

func TestNewFetcher_FSRequiresRoot(t *testing.T) {
	_, err := NewFetcher(context.Background(), FetcherConfig{Type: StoreTypeFS})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a root directory")
}

func TestNewFetcher_ExplicitFS(t *testing.T) {
	f, err := NewFetcher(context.Background(), FetcherConfig{Type: StoreTypeFS, Root: t.TempDir()})
	require.NoError(t, err)
	_, ok := f.(*FileFetcher)
	assert.True(t, ok, "expected *FileFetcher, got %T", f)
}

func TestNewFetcher_GCS(t *testing.T) {
	_, err := NewFetcher(context.Background(), FetcherConfig{Type: StoreTypeGCS})
	// Without -tags gcp the backend is compiled out; with it, ADC may be
	// missing in the test environment. Either way no fetcher is usable here.
	if err != nil && strings.Contains(err.Error(), "GCS storage is not enabled") {
		return
	}
	t.Logf("gcs fetcher result: %v", err)
}

func TestFileFetcher_RoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pipeline-bucket", "test-artifact"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pipeline-bucket", "test-artifact", "artifact.zip"), []byte("PK payload"), 0o644))

	dest := filepath.Join(t.TempDir(), "download.zip")
	f := NewFileFetcher(root)
	err := f.Fetch(context.Background(), Location{Bucket: "pipeline-bucket", Key: "test-artifact/artifact.zip"}, dest)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "PK payload", string(got))
}

func TestFileFetcher_NotFound(t *testing.T) {
	f := NewFileFetcher(t.TempDir())
	err := f.Fetch(context.Background(), Location{Bucket: "b", Key: "missing.zip"}, filepath.Join(t.TempDir(), "x.zip"))
	require.Error(t, err)

	var retrievalErr *RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, "missing.zip", retrievalErr.Location.Key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFileFetcher_RejectsEscape(t *testing.T) {
	f := NewFileFetcher(t.TempDir())
	err := f.Fetch(context.Background(), Location{Bucket: "b", Key: "../../etc/passwd"}, filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes store root")
}

func TestFileFetcher_RefusesExistingDestination(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b", "a.zip"), []byte("new"), 0o644))

	dest := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	err := NewFileFetcher(root).Fetch(context.Background(), Location{Bucket: "b", Key: "a.zip"}, dest)
	require.Error(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

type fakeS3 struct {
	body  string
	err   error
	input *s3.GetObjectInput
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestS3Fetcher_Fetch(t *testing.T) {
	client := &fakeS3{body: "zip-bytes"}
	dest := filepath.Join(t.TempDir(), "outer.zip")

	err := NewS3FetcherWithClient(client).Fetch(context.Background(), Location{Bucket: "bkt", Key: "uat/artifact.zip"}, dest)
	require.NoError(t, err)
	assert.Equal(t, "bkt", *client.input.Bucket)
	assert.Equal(t, "uat/artifact.zip", *client.input.Key)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(got))
}

func TestS3Fetcher_NoSuchKey(t *testing.T) {
	client := &fakeS3{err: &s3types.NoSuchKey{}}
	err := NewS3FetcherWithClient(client).Fetch(context.Background(), Location{Bucket: "bkt", Key: "nope"}, filepath.Join(t.TempDir(), "o.zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Fetcher_TransferError(t *testing.T) {
	client := &fakeS3{err: errors.New("connection reset")}
	dest := filepath.Join(t.TempDir(), "o.zip")
	err := NewS3FetcherWithClient(client).Fetch(context.Background(), Location{Bucket: "bkt", Key: "k"}, dest)
	require.Error(t, err)

	var retrievalErr *RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
	assert.NoFileExists(t, dest)
}
