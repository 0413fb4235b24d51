// Package discover finds marker files under a directory tree.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var ErrRootNotDir = errors.New("search root is not a directory")

// Finder walks a tree looking for files with an exact base name.
type Finder struct {
	logger zerolog.Logger
	walk   func(root string, fn fs.WalkDirFunc) error
}

// NewFinder creates a Finder that reports skipped subtrees on logger.
func NewFinder(logger zerolog.Logger) *Finder {
	return &Finder{logger: logger, walk: filepath.WalkDir}
}

// Find is a convenience wrapper using a disabled logger.
func Find(ctx context.Context, root, name string) ([]string, error) {
	return NewFinder(zerolog.Nop()).Find(ctx, root, name)
}

// Find returns every non-directory entry under root whose base name equals
// name, in lexical walk order. The root itself may be a symlink to a
// directory; symlinked directories below it are not followed. Unreadable
// subdirectories are skipped with a warning.
func (f *Finder) Find(ctx context.Context, root, name string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}

	// WalkDir lstats its root; a trailing separator makes it descend into a
	// symlinked root while reported paths keep the caller's prefix.
	walkRoot := root
	if !strings.HasSuffix(walkRoot, string(os.PathSeparator)) {
		walkRoot += string(os.PathSeparator)
	}

	var matches []string
	err = f.walk(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == walkRoot {
				return err
			}
			f.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || d.Name() != name {
			return nil
		}

		matches = append(matches, path)
		f.logger.Debug().Str("path", path).Msg("marker found")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	f.logger.Info().Str("root", root).Str("marker", name).Int("found", len(matches)).Msg("discovery complete")
	return matches, nil
}
