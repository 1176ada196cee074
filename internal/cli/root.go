// Package cli implements the contentpipe command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/contentpipe/internal/config"
	"github.com/aristath/contentpipe/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "contentpipe",
	Short: "Multi-agent content pipeline orchestrator",
	Long: `Contentpipe drives topics through a dependency-aware content pipeline:
research, analysis, writing, SEO optimization, and quality assurance, each
stage handled by a specialist agent. The stage graph, agents, and quality
gate come from configuration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.contentpipe/config.json merged with .contentpipe/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json",
		"log format: json writes to <workspace>/contentpipe.log, text writes to stderr")
}

// loadConfig resolves configuration for a command invocation. An explicit
// --config file is layered over the defaults by itself and must exist;
// otherwise the conventional global and project files are merged.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
		}
		return config.Load(cfgFile, "")
	}
	return config.LoadDefault()
}

// newLogger builds the run logger from the logging flags.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if logFormat == "text" {
		return logging.NewTextLogger(os.Stderr, logLevel), nil
	}
	return logging.NewLogger(cfg.Workspace, logLevel)
}
