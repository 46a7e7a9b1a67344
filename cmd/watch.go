package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescope-dev/codescope/internal/analyzers"
	"github.com/codescope-dev/codescope/internal/config"
	"github.com/codescope-dev/codescope/internal/logging"
	"github.com/codescope-dev/codescope/internal/registry"
	"github.com/codescope-dev/codescope/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [path]",
	Aliases: []string{"w"},
	Short:   "Re-analyze the tree whenever it changes",
	Long: `Watch runs an initial analysis, then watches the tree and re-runs
the configured analyzers after each debounced batch of file changes.
Interrupt with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringSlice("analyzer", nil, "analyzers to run (default: all)")
	watchCmd.Flags().Int("debounce", 0, "debounce window in milliseconds")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Analyze.BaseDir = args[0]
	}
	if names, _ := cmd.Flags().GetStringSlice("analyzer"); len(names) > 0 {
		cfg.Analyze.Analyzers = names
	}
	if debounce, _ := cmd.Flags().GetInt("debounce"); debounce > 0 {
		cfg.Watch.DebounceMillis = debounce
	}

	logger := newLogger()
	reg := registry.NewRunRegistry()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watchLoop(ctx, cfg, reg, logger)
}

// watchLoop runs the initial analysis and then re-runs on change batches
// until ctx is cancelled.
func watchLoop(ctx context.Context, cfg *config.Config, reg *registry.RunRegistry, logger logging.Logger) error {
	runAll := func() {
		outcomes, err := analyzers.RunAll(ctx, cfg, logger)
		if err != nil {
			logger.Warn(ctx, err, "analysis pass failed")
		}
		for _, outcome := range outcomes {
			reg.Register(&registry.RunInfo{
				Analyzer:  outcome.Analyzer,
				Aggregate: outcome.Aggregate,
				Stats:     outcome.Stats,
			})
			fmt.Fprintf(os.Stdout, "%-10s discovered=%d reused=%d computed=%d failed=%d pruned=%d\n",
				outcome.Analyzer,
				outcome.Stats.Discovered, outcome.Stats.Reused, outcome.Stats.Computed,
				outcome.Stats.Failed, outcome.Stats.Pruned)
		}
	}

	runAll()

	fw, err := watcher.NewFileWatcher(time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond, logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddFilter(watcher.NoCacheFilter)
	fw.AddFilter(watcher.ExcludeDirsFilter(cfg.Analyze.ExcludeDirs...))
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		logger.Info(ctx, "changes detected, re-analyzing", "files", len(events))
		runAll()
		return nil
	})

	roots := cfg.Watch.Paths
	if len(roots) == 0 {
		roots = []string{cfg.Analyze.BaseDir}
	}
	for _, root := range roots {
		if err := fw.AddRecursive(ctx, root); err != nil {
			return err
		}
	}
	fw.Start(ctx)

	<-ctx.Done()
	return nil
}
