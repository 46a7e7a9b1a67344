package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	scopeerrors "github.com/codescope-dev/codescope/internal/errors"
	"github.com/codescope-dev/codescope/internal/logging"
)

// CandidateFile describes one file selected by discovery. Candidates are
// produced fresh on every run and never persisted.
type CandidateFile struct {
	// Path is the absolute path on disk.
	Path string
	// Rel is the slash-separated path relative to BaseDir; it is the
	// cache key for this file.
	Rel string
	// Ext is the lower-cased extension without the dot, "" if none.
	Ext string
	// Size in bytes at discovery time.
	Size int64
	// ModTime at discovery time. Informational only, never used for
	// change detection.
	ModTime time.Time
}

// knownTextExts get the larger size ceiling: they are cheap to hold in
// memory even when generated (lockfiles) and are exactly the dialects the
// analyzers care about.
var knownTextExts = map[string]bool{
	"css": true, "erb": true, "gemspec": true, "go": true, "hbs": true,
	"html": true, "js": true, "json": true, "jsx": true, "lock": true,
	"md": true, "py": true, "rb": true, "rs": true, "scss": true,
	"toml": true, "ts": true, "tsx": true, "txt": true, "vue": true,
	"yaml": true, "yml": true,
}

// Discover walks opts.BaseDir and returns the candidate file set for a
// run. Symlinks are followed with cycle detection. Unreadable subtrees are
// logged and skipped; only an unreadable base directory is fatal.
func Discover(ctx context.Context, opts Options, logger logging.Logger) ([]CandidateFile, error) {
	baseDir, err := filepath.Abs(opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", scopeerrors.ErrBaseDir, opts.BaseDir, err)
	}

	info, err := os.Stat(baseDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", scopeerrors.ErrBaseDir, opts.BaseDir)
	}

	w := &walker{
		opts:    opts,
		baseDir: baseDir,
		logger:  logger,
		visited: make(map[string]bool),
	}
	// The engine's own cache file is never a candidate.
	if abs, err := filepath.Abs(opts.CachePath); err == nil {
		w.cachePath = abs
	}

	if real, err := filepath.EvalSymlinks(baseDir); err == nil {
		w.visited[real] = true
	}

	if err := w.walkDir(ctx, baseDir, true); err != nil {
		return nil, err
	}

	return w.files, nil
}

type walker struct {
	opts      Options
	baseDir   string
	cachePath string
	logger    logging.Logger
	visited   map[string]bool
	files     []CandidateFile
}

// walkDir recurses into dir. root marks the base directory, whose read
// failure aborts the whole run.
func (w *walker) walkDir(ctx context.Context, dir string, root bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if root {
			return fmt.Errorf("%w: %s: %v", scopeerrors.ErrBaseDir, dir, err)
		}
		w.logger.Warn(ctx, err, "skipping unreadable directory", "dir", dir)
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		rel, err := filepath.Rel(w.baseDir, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		if w.excluded(rel) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			w.logger.Warn(ctx, err, "skipping unstatable entry", "path", path)
			continue
		}

		// Resolve symlinks so linked trees are analyzed too.
		if info.Mode()&os.ModeSymlink != 0 {
			resolved, err := os.Stat(path)
			if err != nil {
				w.logger.Warn(ctx, err, "skipping broken symlink", "path", path)
				continue
			}
			info = resolved
		}

		if info.IsDir() {
			real, err := filepath.EvalSymlinks(path)
			if err != nil {
				w.logger.Warn(ctx, err, "skipping unresolvable directory", "path", path)
				continue
			}
			if w.visited[real] {
				continue
			}
			w.visited[real] = true

			if err := w.walkDir(ctx, path, false); err != nil {
				return err
			}
			continue
		}

		if candidate, ok := w.selectFile(ctx, path, rel, info.Size(), info.ModTime()); ok {
			w.files = append(w.files, candidate)
		}
	}

	return nil
}

// excluded applies the substring exclude patterns against the relative
// path, matching the behavior of patterns like "node_modules" anywhere in
// the path.
func (w *walker) excluded(rel string) bool {
	for _, pattern := range w.opts.ExcludeDirs {
		if pattern != "" && strings.Contains(rel, pattern) {
			return true
		}
	}
	return false
}

// selectFile applies the include extension set, the extension-less name
// allow list, and the size ceilings.
func (w *walker) selectFile(ctx context.Context, path, rel string, size int64, modTime time.Time) (CandidateFile, bool) {
	if w.cachePath != "" && path == w.cachePath {
		return CandidateFile{}, false
	}

	name := filepath.Base(rel)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")

	included := false
	if ext == "" {
		for _, allowed := range w.opts.IncludeNames {
			if name == allowed {
				included = true
				break
			}
		}
	} else {
		for _, allowed := range w.opts.IncludeExts {
			if ext == strings.ToLower(allowed) {
				included = true
				break
			}
		}
	}
	if !included {
		return CandidateFile{}, false
	}

	ceiling := w.opts.MaxFileSize
	if knownTextExts[ext] {
		ceiling = w.opts.MaxTextFileSize
	}
	if size > ceiling {
		w.logger.Debug(ctx, "skipping oversized file", "path", rel, "size", size, "ceiling", ceiling)
		return CandidateFile{}, false
	}

	return CandidateFile{
		Path:    path,
		Rel:     rel,
		Ext:     ext,
		Size:    size,
		ModTime: modTime,
	}, true
}
