package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codescope-dev/codescope/internal/analyzers"
	"github.com/codescope-dev/codescope/internal/config"
	"github.com/codescope-dev/codescope/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:     "analyze [path]",
	Aliases: []string{"a"},
	Short:   "Analyze a source tree and write reports",
	Long: `Analyze runs the configured analyzers over a source tree. With a
warm cache only changed files are recomputed; --full forces recomputation
of every file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringSlice("analyzer", nil, "analyzers to run (default: all)")
	analyzeCmd.Flags().Bool("full", false, "ignore the cache and recompute every file")
	analyzeCmd.Flags().StringP("format", "f", "", "report format (markdown, json, yaml)")
	analyzeCmd.Flags().StringP("output-dir", "o", "", "report output directory")
	analyzeCmd.Flags().Int("workers", 0, "worker count (default: number of CPUs, capped)")

	_ = viper.BindPFlag("analyze.analyzers", analyzeCmd.Flags().Lookup("analyzer"))
	_ = viper.BindPFlag("report.format", analyzeCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("report.output_dir", analyzeCmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("analyze.workers", analyzeCmd.Flags().Lookup("workers"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Analyze.BaseDir = args[0]
	}
	if full, _ := cmd.Flags().GetBool("full"); full {
		cfg.Analyze.Incremental = false
	}

	logger := newLogger()
	ctx := cmd.Context()

	outcomes, err := analyzers.RunAll(ctx, cfg, logger)
	if err != nil {
		return err
	}

	for _, outcome := range outcomes {
		path, err := report.Write(cfg.Report.OutputDir, outcome.Analyzer, cfg.Report.Format, outcome.Aggregate)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%-10s discovered=%d reused=%d computed=%d failed=%d pruned=%d -> %s\n",
			outcome.Analyzer,
			outcome.Stats.Discovered, outcome.Stats.Reused, outcome.Stats.Computed,
			outcome.Stats.Failed, outcome.Stats.Pruned,
			path)
	}
	return nil
}
