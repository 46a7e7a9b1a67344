// Package cmd provides the command-line interface for codescope with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --format, etc.) - highest priority
//	2. CODESCOPE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (CODESCOPE_SERVE_PORT, etc.)
//	4. Configuration files (.codescope.yml) - lowest priority
//
// Environment Variables:
//
//	CODESCOPE_CONFIG_FILE: Path to custom configuration file
//	CODESCOPE_ANALYZE_BASE_DIR: Override the analyzed tree
//	CODESCOPE_SERVE_PORT: Override report server port
//	And more following the CODESCOPE_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/codescope-dev/codescope/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "codescope",
	Short: "Incremental source-tree analysis with persistent caching",
	Long: `Codescope analyzes a source tree with a set of pluggable analyzers and
caches per-file results, so repeated runs only recompute what changed.

Analyzers:
  deps        Dependency manifests (package.json, Gemfile, requirements.txt, Cargo.toml, Dockerfile)
  api         HTTP API surface (Rails routes, fetch/axios/GraphQL call sites)
  structure   Tree layout, imports, and directory purposes
  templates   ERB/Handlebars/HTML/Vue/JSX templates

Quick Start:
  codescope analyze                Run every analyzer over the current tree
  codescope analyze --analyzer deps ./lms
  codescope watch                  Re-analyze on file changes
  codescope serve                  Serve reports over HTTP and WebSocket`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Accept --log_level as an alias for --log-level and so on.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .codescope.yml, can also use CODESCOPE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. CODESCOPE_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .codescope.yml in current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("CODESCOPE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".codescope")
	}

	viper.SetEnvPrefix("CODESCOPE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Missing or malformed config files degrade to defaults.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the persistent flags.
func newLogger() logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(viper.GetString("log-level")),
		Format: viper.GetString("log-format"),
		Output: os.Stderr,
	})
}
