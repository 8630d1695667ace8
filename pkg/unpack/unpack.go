// Package unpack expands packaged build artifacts into scratch directories.
//
// A downloaded package is expanded in place and every package found among
// the resulting top-level entries is expanded once more. Packages deeper than
// MaxNestedDepth are left as ordinary files.
package unpack

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
)

// MaxNestedDepth is how many levels of packages inside the downloaded
// package are expanded.
const MaxNestedDepth = 1

// PackageExt is the filename suffix that marks an entry as a package.
const PackageExt = ".zip"

func newFlateReader(r io.Reader) io.ReadCloser {
	return flate.NewReader(r)
}

// UnpackError reports a package that could not be expanded.
type UnpackError struct {
	Package string
	Err     error
}

func (e *UnpackError) Error() string {
	return fmt.Sprintf("unpack %s: %v", filepath.Base(e.Package), e.Err)
}

func (e *UnpackError) Unwrap() error { return e.Err }

var errUnsafePath = errors.New("entry escapes destination")

// IsPackage reports whether name looks like a package file.
func IsPackage(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), PackageExt)
}

// Unpacker expands packages with a bounded nesting depth.
type Unpacker struct {
	maxDepth int
	logger   *slog.Logger
}

// New returns an Unpacker that expands MaxNestedDepth nested levels.
func New() *Unpacker {
	return NewWithDepth(MaxNestedDepth)
}

// NewWithDepth returns an Unpacker with an explicit nesting bound.
func NewWithDepth(maxDepth int) *Unpacker {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Unpacker{
		maxDepth: maxDepth,
		logger:   slog.Default().With("component", "unpack"),
	}
}

// Unpack expands pkgPath, which must live directly inside dir, into dir.
// Nested packages at the top level of dir are expanded and removed, level by
// level, up to the configured depth. The original package is removed on
// success. It returns dir.
func (u *Unpacker) Unpack(ctx context.Context, dir, pkgPath string) (string, error) {
	if err := extract(ctx, pkgPath, dir); err != nil {
		return "", &UnpackError{Package: pkgPath, Err: err}
	}
	if err := os.Remove(pkgPath); err != nil {
		return "", &UnpackError{Package: pkgPath, Err: fmt.Errorf("remove package: %w", err)}
	}
	u.logger.InfoContext(ctx, "extracted package", "package", filepath.Base(pkgPath), "entries", topLevel(dir))

	expanded := map[string]bool{}
	for depth := 1; depth <= u.maxDepth; depth++ {
		nested, err := nestedPackages(dir, expanded)
		if err != nil {
			return "", &UnpackError{Package: pkgPath, Err: err}
		}
		if len(nested) == 0 {
			break
		}
		for _, path := range nested {
			u.logger.InfoContext(ctx, "found nested package", "package", filepath.Base(path), "depth", depth)
			// Move the package aside first: it may contain an entry with its
			// own name.
			staged := filepath.Join(dir, uuid.NewString()+PackageExt)
			if err := os.Rename(path, staged); err != nil {
				return "", &UnpackError{Package: path, Err: fmt.Errorf("stage nested package: %w", err)}
			}
			if err := extract(ctx, staged, dir); err != nil {
				return "", &UnpackError{Package: path, Err: err}
			}
			if err := os.Remove(staged); err != nil {
				return "", &UnpackError{Package: path, Err: fmt.Errorf("remove nested package: %w", err)}
			}
			expanded[filepath.Base(path)] = true
		}
	}

	u.logger.InfoContext(ctx, "final extracted entries", "dir", dir, "entries", topLevel(dir))
	return dir, nil
}

// nestedPackages lists package files at the top level of dir, skipping names
// that were already expanded at a shallower level.
func nestedPackages(dir string, skip map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsPackage(e.Name()) || skip[e.Name()] {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func extract(ctx context.Context, pkgPath, dest string) error {
	reader, err := zip.OpenReader(pkgPath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close() //nolint:errcheck // read-only
	reader.RegisterDecompressor(zip.Deflate, newFlateReader)

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractEntry(file, dest); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(file *zip.File, dest string) error {
	if file.FileInfo().IsDir() && filepath.Clean(filepath.FromSlash(file.Name)) == "." {
		return nil
	}
	target, err := safeJoin(dest, file.Name)
	if err != nil {
		return err
	}
	if file.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o750)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}

	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", file.Name, err)
	}
	defer rc.Close() //nolint:errcheck // read-only

	//nolint:gosec // G304: target validated by safeJoin
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	//nolint:gosec // G110: artifact size is bounded by the pipeline
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("write entry %s: %w", file.Name, err)
	}
	return out.Close()
}

func safeJoin(base, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(name)))
	if clean == "." || clean == "" {
		return "", fmt.Errorf("%w: %q", errUnsafePath, name)
	}
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: absolute path %q", errUnsafePath, name)
	}
	target := filepath.Join(base, clean)
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", errUnsafePath, name)
	}
	return target, nil
}

func topLevel(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
