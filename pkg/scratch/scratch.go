// Package scratch tracks invocation-local working directories and releases
// them together.
package scratch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Area owns every scratch directory created for one invocation.
// It is safe for concurrent use.
type Area struct {
	root   string
	prefix string
	logger *slog.Logger

	mu   sync.Mutex
	dirs []string
}

// NewArea returns an Area that creates directories under root (os.TempDir
// when empty), named <prefix>-<uuid>.
func NewArea(root, prefix string) *Area {
	if root == "" {
		root = os.TempDir()
	}
	if prefix == "" {
		prefix = "scratch"
	}
	return &Area{
		root:   root,
		prefix: prefix,
		logger: slog.Default().With("component", "scratch"),
	}
}

// NewDir creates and records a new, uniquely named directory.
func (a *Area) NewDir(label string) (string, error) {
	if err := os.MkdirAll(a.root, 0o750); err != nil {
		return "", fmt.Errorf("ensure scratch root: %w", err)
	}
	name := a.prefix
	if label != "" {
		name += "-" + label
	}
	dir := filepath.Join(a.root, name+"-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}

	a.mu.Lock()
	a.dirs = append(a.dirs, dir)
	a.mu.Unlock()
	return dir, nil
}

// Release removes every recorded directory. All removals are attempted; the
// returned error joins any failures.
func (a *Area) Release(ctx context.Context) error {
	a.mu.Lock()
	dirs := a.dirs
	a.dirs = nil
	a.mu.Unlock()

	var errs []error
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			a.logger.ErrorContext(ctx, "failed to remove scratch dir", "dir", dir, "error", err)
			errs = append(errs, err)
		}
	}
	if len(dirs) > 0 {
		a.logger.DebugContext(ctx, "released scratch dirs", "count", len(dirs))
	}
	return errors.Join(errs...)
}
