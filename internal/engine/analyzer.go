// Package engine implements the incremental analysis engine shared by all
// codescope analyzers.
//
// An analyzer supplies two capabilities: a per-file analysis function and
// an order-independent merge over per-file results. The engine owns
// everything else: candidate discovery, content fingerprinting, the
// on-disk cache keyed to the analyzer configuration, reuse-vs-recompute
// decisions, stale entry pruning, and atomic persistence. Each analyzer
// instance owns one cache file; analyzers never share cache state and may
// run concurrently with each other.
package engine

import (
	"path/filepath"
	"runtime"
)

// Analyzer is the contract a concrete analyzer implements to plug into the
// engine. R is the per-file result, A the aggregate returned to callers.
//
// AnalyzeFile must not mutate shared state: the engine calls it from a
// worker pool. Merge receives results keyed by base-dir-relative path and
// must produce the same aggregate regardless of map iteration order.
type Analyzer[R, A any] interface {
	// Name identifies the analyzer. It names the default cache file and
	// is folded into the config fingerprint.
	Name() string
	// AnalyzeFile analyzes a single file in isolation.
	AnalyzeFile(path string) (R, error)
	// Merge reduces all current per-file results into one aggregate.
	Merge(results map[string]R) A
}

// Options are the engine tunables for one analyzer instance. Everything
// that influences which files are seen or how results are shaped is part
// of the config fingerprint; changing any of it invalidates the whole
// cache on the next run.
type Options struct {
	// BaseDir is the root of the tree to analyze.
	BaseDir string
	// ExcludeDirs are substring patterns matched against relative paths;
	// any match excludes the file (mirrors patterns like "node_modules").
	ExcludeDirs []string
	// IncludeExts lists extensions (without dot) to include.
	IncludeExts []string
	// IncludeNames allow-lists extension-less files such as Gemfile or
	// Dockerfile by exact base name.
	IncludeNames []string
	// MaxFileSize caps candidate size in bytes. Zero means 1 MiB.
	MaxFileSize int64
	// MaxTextFileSize caps candidates whose extension is known text.
	// Zero means 5 MiB.
	MaxTextFileSize int64
	// UseIncremental enables cache reuse. When false every file is
	// recomputed, but the cache is still populated for later runs.
	UseIncremental bool
	// CachePath overrides the cache location. Empty means
	// <BaseDir>/.<name>_cache.json.
	CachePath string
	// Workers bounds per-file parallelism. Zero means NumCPU capped at 8.
	Workers int
	// Version is the analyzer's result-schema version. Bumping it forces
	// a full recompute via the config fingerprint.
	Version string
	// Tunables carries analyzer-specific knobs that must participate in
	// cache invalidation without the engine knowing their meaning.
	Tunables []string
}

const (
	defaultMaxFileSize     = 1 << 20
	defaultMaxTextFileSize = 5 << 20
)

// withDefaults fills unset options for the named analyzer.
func (o Options) withDefaults(name string) Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = defaultMaxFileSize
	}
	if o.MaxTextFileSize <= 0 {
		o.MaxTextFileSize = defaultMaxTextFileSize
	}
	if o.CachePath == "" {
		o.CachePath = filepath.Join(o.BaseDir, "."+name+"_cache.json")
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
		if o.Workers > 8 {
			o.Workers = 8
		}
	}
	return o
}
