package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codescope-dev/codescope/internal/analyzers"
	"github.com/codescope-dev/codescope/internal/config"
	"github.com/codescope-dev/codescope/internal/registry"
	"github.com/codescope-dev/codescope/internal/server"
	"github.com/codescope-dev/codescope/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve analysis results over HTTP and WebSocket",
	Long: `Serve runs an initial analysis, then exposes the results over HTTP
(/api/analyzers, /api/report/<name>) and pushes run events to WebSocket
clients on /ws. The tree is watched so results stay current while the
server runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "port to listen on")
	serveCmd.Flags().String("host", "", "host interface to bind")
	serveCmd.Flags().Bool("no-watch", false, "serve the initial results without watching for changes")

	_ = viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("serve.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Analyze.BaseDir = args[0]
	}

	logger := newLogger()
	reg := registry.NewRunRegistry()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registerAll := func() {
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
		}
	}
	registerAll()

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); !noWatch {
		fw, err := watcher.NewFileWatcher(time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond, logger)
		if err != nil {
			return err
		}
		defer fw.Stop()

		fw.AddFilter(watcher.NoCacheFilter)
		fw.AddFilter(watcher.ExcludeDirsFilter(cfg.Analyze.ExcludeDirs...))
		fw.AddHandler(func(events []watcher.ChangeEvent) error {
			logger.Info(ctx, "changes detected, refreshing results", "files", len(events))
			registerAll()
			return nil
		})
		if err := fw.AddRecursive(ctx, cfg.Analyze.BaseDir); err != nil {
			return err
		}
		fw.Start(ctx)
	}

	fmt.Fprintf(os.Stdout, "Serving analysis results on http://%s:%d\n", cfg.Serve.Host, cfg.Serve.Port)
	return server.New(cfg.Serve, reg, logger).ListenAndServe(ctx)
}
