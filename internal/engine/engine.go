package engine

import (
	"context"
	"fmt"
	"os"
	"sync"

	scopeerrors "github.com/codescope-dev/codescope/internal/errors"
	"github.com/codescope-dev/codescope/internal/logging"
)

// RunStats summarizes one Analyze call.
type RunStats struct {
	// Discovered is the candidate count for the run.
	Discovered int `json:"discovered"`
	// Reused counts cache hits (fingerprint unchanged).
	Reused int `json:"reused"`
	// Computed counts fresh AnalyzeFile invocations that succeeded.
	Computed int `json:"computed"`
	// Failed counts files skipped because reading or analysis failed.
	Failed int `json:"failed"`
	// Pruned counts stale cache entries dropped for vanished files.
	Pruned int `json:"pruned"`
}

// Engine drives incremental analysis for one analyzer instance. It is
// safe to run engines for different analyzers concurrently; a single
// engine's Analyze is not reentrant.
type Engine[R, A any] struct {
	analyzer  Analyzer[R, A]
	opts      Options
	logger    logging.Logger
	collector *scopeerrors.Collector

	mu    sync.Mutex
	stats RunStats
}

// New builds an engine for the analyzer with defaults applied.
func New[R, A any](analyzer Analyzer[R, A], opts Options, logger logging.Logger) *Engine[R, A] {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Engine[R, A]{
		analyzer:  analyzer,
		opts:      opts.withDefaults(analyzer.Name()),
		logger:    logger.WithComponent(analyzer.Name()),
		collector: scopeerrors.NewCollector(),
	}
}

// Options returns the effective options after defaulting.
func (e *Engine[R, A]) Options() Options {
	return e.opts
}

// LastStats returns the counters from the most recent Analyze call.
func (e *Engine[R, A]) LastStats() RunStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Collector exposes the per-file failures and warnings of the last run.
func (e *Engine[R, A]) Collector() *scopeerrors.Collector {
	return e.collector
}

// outcome is the fan-in unit produced by workers for one candidate.
type outcome[R any] struct {
	rel         string
	fingerprint Fingerprint
	result      R
	reused      bool
	failed      bool
}

// Analyze runs one full pass: load and validate the cache, discover
// candidates, reuse or recompute per file, prune stale entries, merge, and
// persist. The returned aggregate is always a pure function of the
// post-run entry set. The only hard failure is an unscannable base
// directory; everything at single-file granularity is collected and
// skipped.
func (e *Engine[R, A]) Analyze(ctx context.Context) (A, error) {
	var zero A
	e.collector.Clear()

	configFP := ConfigFingerprint(e.analyzer.Name(), e.opts)

	cache, loadErr := LoadCache[R](e.opts.CachePath)
	if loadErr != nil {
		e.logger.Warn(ctx, loadErr, "cache unusable, starting cold", "cache_path", e.opts.CachePath)
		e.collector.AddWarning(fmt.Errorf("%w: %v", scopeerrors.ErrCacheCorrupt, loadErr))
	}
	if !cache.IsValidFor(configFP) {
		if len(cache.Entries) > 0 {
			e.logger.Info(ctx, "configuration changed, discarding cache", "entries", len(cache.Entries))
		}
		cache = NewCache[R](configFP)
	}

	candidates, err := Discover(ctx, e.opts, e.logger)
	if err != nil {
		return zero, err
	}

	outcomes, err := e.processCandidates(ctx, candidates, cache.Entries)
	if err != nil {
		// Canceled mid-run: abandon without persisting a half-updated
		// cache.
		return zero, err
	}

	stats := RunStats{Discovered: len(candidates)}
	fresh := make(map[string]CacheEntry[R], len(outcomes))
	for _, out := range outcomes {
		switch {
		case out.failed:
			stats.Failed++
		case out.reused:
			stats.Reused++
			fresh[out.rel] = CacheEntry[R]{Fingerprint: out.fingerprint, Result: out.result}
		default:
			stats.Computed++
			fresh[out.rel] = CacheEntry[R]{Fingerprint: out.fingerprint, Result: out.result}
		}
	}

	// Rebuilding the entry map from this run's candidates prunes entries
	// for deleted and renamed files in the same step.
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		seen[c.Rel] = true
	}
	for rel := range cache.Entries {
		if !seen[rel] {
			stats.Pruned++
		}
	}
	cache.Entries = fresh
	cache.ConfigFingerprint = configFP

	results := make(map[string]R, len(cache.Entries))
	for rel, entry := range cache.Entries {
		results[rel] = entry.Result
	}
	aggregate := e.analyzer.Merge(results)

	if err := SaveCache(e.opts.CachePath, cache); err != nil {
		// Persistence failure must not invalidate the aggregate already
		// computed; the next run recomputes what it needs.
		e.logger.Warn(ctx, err, "cache not persisted", "cache_path", e.opts.CachePath)
		e.collector.AddWarning(fmt.Errorf("%w: %v", scopeerrors.ErrCachePersist, err))
	}

	e.mu.Lock()
	e.stats = stats
	e.mu.Unlock()

	e.logger.Info(ctx, "analysis complete",
		"discovered", stats.Discovered,
		"reused", stats.Reused,
		"computed", stats.Computed,
		"failed", stats.Failed,
		"pruned", stats.Pruned,
	)

	return aggregate, nil
}

// processCandidates fans the per-file work out to a bounded worker pool
// and collects outcomes on a single coordinator goroutine. Workers only
// read the loaded cache; all cache mutation happens after fan-in.
func (e *Engine[R, A]) processCandidates(ctx context.Context, candidates []CandidateFile, cached map[string]CacheEntry[R]) ([]outcome[R], error) {
	if len(candidates) == 0 {
		return nil, ctx.Err()
	}

	jobs := make(chan CandidateFile)
	results := make(chan outcome[R], len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				results <- e.processFile(ctx, file, cached)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, file := range candidates {
			select {
			case jobs <- file:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]outcome[R], 0, len(candidates))
	for out := range results {
		outcomes = append(outcomes, out)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// processFile fingerprints one candidate and either reuses the cached
// result or invokes the analyzer. A panicking analyzer is contained here
// so one bad file cannot poison the batch.
func (e *Engine[R, A]) processFile(ctx context.Context, file CandidateFile, cached map[string]CacheEntry[R]) (out outcome[R]) {
	out.rel = file.Rel

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, fmt.Errorf("panic: %v", r), "analyzer panicked, skipping file", "path", file.Rel)
			e.collector.AddFile(*scopeerrors.NewFileError(e.analyzer.Name(), file.Rel, fmt.Errorf("panic: %v", r), "analyzer panicked"))
			out.failed = true
		}
	}()

	content, err := os.ReadFile(file.Path)
	if err != nil {
		e.logger.Warn(ctx, err, "skipping unreadable file", "path", file.Rel)
		e.collector.AddFile(*scopeerrors.NewFileError(e.analyzer.Name(), file.Rel, err, "file unreadable"))
		out.failed = true
		return out
	}

	out.fingerprint = fingerprintBytes(content)

	if e.opts.UseIncremental {
		if entry, ok := cached[file.Rel]; ok && entry.Fingerprint == out.fingerprint {
			out.result = entry.Result
			out.reused = true
			return out
		}
	}

	result, err := e.analyzer.AnalyzeFile(file.Path)
	if err != nil {
		e.logger.Warn(ctx, err, "analysis failed, skipping file", "path", file.Rel)
		e.collector.AddFile(*scopeerrors.NewFileError(e.analyzer.Name(), file.Rel, err, "analysis failed"))
		out.failed = true
		return out
	}

	out.result = result
	return out
}
