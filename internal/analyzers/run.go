// Package analyzers wires the concrete analyzers to the incremental
// engine and runs them by name.
package analyzers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/codescope-dev/codescope/internal/analyzers/api"
	"github.com/codescope-dev/codescope/internal/analyzers/deps"
	"github.com/codescope-dev/codescope/internal/analyzers/structure"
	"github.com/codescope-dev/codescope/internal/analyzers/templates"
	"github.com/codescope-dev/codescope/internal/config"
	"github.com/codescope-dev/codescope/internal/engine"
	"github.com/codescope-dev/codescope/internal/logging"
)

// Outcome is the result of one analyzer run.
type Outcome struct {
	Analyzer  string
	Aggregate any
	Stats     engine.RunStats
}

// Run executes the named analyzer over the configured tree.
func Run(ctx context.Context, name string, cfg *config.Config, logger logging.Logger) (Outcome, error) {
	switch name {
	case "deps":
		return runOne[deps.FileResult, deps.Result](ctx, deps.NewAnalyzer(), deps.DefaultOptions(cfg.Analyze.BaseDir), cfg, logger)
	case "api":
		return runOne[api.FileResult, api.Result](ctx, api.NewAnalyzer(), api.DefaultOptions(cfg.Analyze.BaseDir), cfg, logger)
	case "structure":
		return runOne[structure.FileInfo, structure.Result](ctx, structure.NewAnalyzer(cfg.Analyze.BaseDir), structure.DefaultOptions(cfg.Analyze.BaseDir), cfg, logger)
	case "templates":
		return runOne[templates.Template, templates.Result](ctx, templates.NewAnalyzer(), templates.DefaultOptions(cfg.Analyze.BaseDir), cfg, logger)
	default:
		return Outcome{}, fmt.Errorf("unknown analyzer %q", name)
	}
}

// RunAll executes every configured analyzer in order. Per-analyzer
// failures abort the batch; callers that want to continue run names
// individually.
func RunAll(ctx context.Context, cfg *config.Config, logger logging.Logger) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(cfg.Analyze.Analyzers))
	for _, name := range cfg.Analyze.Analyzers {
		outcome, err := Run(ctx, name, cfg, logger)
		if err != nil {
			return outcomes, fmt.Errorf("analyzer %s: %w", name, err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func runOne[R, A any](ctx context.Context, analyzer engine.Analyzer[R, A], opts engine.Options, cfg *config.Config, logger logging.Logger) (Outcome, error) {
	opts = applyConfig(analyzer.Name(), opts, cfg)

	eng := engine.New[R, A](analyzer, opts, logger)
	aggregate, err := eng.Analyze(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Analyzer:  analyzer.Name(),
		Aggregate: aggregate,
		Stats:     eng.LastStats(),
	}, nil
}

// applyConfig layers global and per-analyzer configuration over an
// analyzer's default options.
func applyConfig(name string, opts engine.Options, cfg *config.Config) engine.Options {
	opts.UseIncremental = cfg.Analyze.Incremental
	opts.Workers = cfg.Analyze.Workers
	if len(cfg.Analyze.ExcludeDirs) > 0 {
		opts.ExcludeDirs = cfg.Analyze.ExcludeDirs
	}
	if cfg.Analyze.CacheDir != "" {
		opts.CachePath = filepath.Join(cfg.Analyze.CacheDir, fmt.Sprintf(".%s_cache.json", name))
	}

	if override, ok := cfg.Analyzers[name]; ok {
		if len(override.ExcludeDirs) > 0 {
			opts.ExcludeDirs = override.ExcludeDirs
		}
		if len(override.IncludeExtensions) > 0 {
			opts.IncludeExts = override.IncludeExtensions
		}
		if override.MaxFileSize > 0 {
			opts.MaxFileSize = override.MaxFileSize
		}
	}
	return opts
}
