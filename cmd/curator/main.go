// Package main provides the curator CLI: the scheduler service, one-off agent runs,
// feed ingestion and database maintenance.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/curator/internal/config"
)

var (
	configPath string
	logFormat  string
	logLevel   string

	// cfg is resolved before any subcommand runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Autonomous content curation agents",
	Long: `curator runs content-curation agents on a schedule: each run gathers candidate links
from RSS feeds and web search, vets them with rule scoring and an optional AI review, and
publishes the best ones as artifacts.

Configuration is loaded from --config (JSON), then environment variables, then flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := resolveConfig(configPath)
	if err != nil {
		return err
	}
	if logFormat != "" {
		loaded.LogFormat = logFormat
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), &cfg))
	return nil
}

// resolveConfig merges the config file (if any) over the defaults and applies the
// environment on top.
func resolveConfig(path string) (config.Config, error) {
	fileCfg := config.Defaults()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		fileCfg = *loaded
	}
	merged := fileCfg.MergeWithDefaults(config.Defaults())
	if err := merged.ApplyEnv(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

func newLogger(w io.Writer, c *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func logger() *slog.Logger {
	return slog.Default().With("system", "cli")
}
