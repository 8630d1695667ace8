package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrObjectNotFound is wrapped by a RetrievalError when the backend reports
// that the requested object does not exist.
var ErrObjectNotFound = errors.New("artifact object not found")

// Location identifies a packaged artifact in object storage.
type Location struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Key    string `json:"key" yaml:"key"`
}

func (l Location) String() string {
	return l.Bucket + "/" + l.Key
}

// RetrievalError reports that an artifact could not be fetched.
type RetrievalError struct {
	Location Location
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %s: %v", e.Location, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Fetcher defines the contract for retrieving packaged artifacts from object storage.
type Fetcher interface {
	// Fetch downloads the object at loc into destPath. Failures are returned
	// as *RetrievalError.
	Fetch(ctx context.Context, loc Location, destPath string) error
}

// FileFetcher is a filesystem-backed implementation of Fetcher.
// Buckets are subdirectories of rootDir.
type FileFetcher struct {
	rootDir string
}

// NewFileFetcher creates a fetcher that resolves <rootDir>/<bucket>/<key>.
func NewFileFetcher(rootDir string) *FileFetcher {
	return &FileFetcher{rootDir: rootDir}
}

func (f *FileFetcher) Fetch(ctx context.Context, loc Location, destPath string) error {
	src, err := f.resolve(loc)
	if err != nil {
		return &RetrievalError{Location: loc, Err: err}
	}

	in, err := os.Open(src) //nolint:gosec // path confined to rootDir by resolve
	if err != nil {
		if os.IsNotExist(err) {
			return &RetrievalError{Location: loc, Err: ErrObjectNotFound}
		}
		return &RetrievalError{Location: loc, Err: err}
	}
	defer in.Close() //nolint:errcheck // read-only handle

	if err := writeFile(ctx, destPath, in); err != nil {
		return &RetrievalError{Location: loc, Err: err}
	}
	return nil
}

func (f *FileFetcher) resolve(loc Location) (string, error) {
	if loc.Bucket == "" || loc.Key == "" {
		return "", fmt.Errorf("incomplete location %q", loc.String())
	}
	base := filepath.Clean(f.rootDir)
	path := filepath.Join(base, loc.Bucket, filepath.FromSlash(loc.Key))
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("location %q escapes store root", loc.String())
	}
	return path, nil
}

// writeFile streams r into a new file at path. The file is closed before
// returning on every path; a partially written file is removed.
func writeFile(ctx context.Context, path string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	//nolint:gosec // G304: destination is a driver-owned scratch path
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
