// Package fingerprint computes content digests for every file under a
// directory tree.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

// Algorithm names a 256-bit content hash.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// ParseAlgorithm validates an algorithm name. Empty selects SHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", name)
	}
}

func (a Algorithm) newHash() hash.Hash {
	if a == BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}

// Map maps a slash-separated path, relative to the fingerprinted root, to
// the hex digest of the file's bytes.
type Map map[string]string

// Paths returns the keys in lexical order.
func (m Map) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Fingerprinter hashes directory trees.
type Fingerprinter struct {
	algorithm Algorithm
}

// New returns a Fingerprinter using the given algorithm.
func New(algorithm Algorithm) *Fingerprinter {
	if algorithm == "" {
		algorithm = SHA256
	}
	return &Fingerprinter{algorithm: algorithm}
}

// Algorithm reports the configured algorithm.
func (f *Fingerprinter) Algorithm() Algorithm { return f.algorithm }

// Compute walks root and hashes every regular file, including files reached
// through symlinks. Symlinked directories are not descended. Empty
// directories contribute nothing.
func (f *Fingerprinter) Compute(ctx context.Context, root string) (Map, error) {
	out := make(Map)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("resolve symlink %s: %w", path, err)
			}
			if !info.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			// sockets, pipes, devices
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sum, err := f.HashFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = sum
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", root, err)
	}
	return out, nil
}

// HashFile streams the file at path through the configured hash and returns
// the hex digest.
func (f *Fingerprinter) HashFile(path string) (string, error) {
	file, err := os.Open(path) //nolint:gosec // caller-owned tree
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only

	hasher := f.algorithm.newHash()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
