// Package config provides configuration loading and validation for the curator
// service and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Default values used by Defaults.
const (
	DefaultPort            = 8080
	DefaultTickSchedule    = "@every 5m"
	DefaultFeedSchedule    = "@hourly"
	DefaultWorkers         = 4
	DefaultQueueSize       = 100
	DefaultMaxAttempts     = 3
	DefaultRetryBackoff    = "5m"
	DefaultAIConcurrency   = 4
	DefaultFeedConcurrency = 4
)

// Config represents the service configuration that can be loaded from a JSON file.
// Environment variables override file values and CLI flags override both.
type Config struct {
	// Connections
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	Port        int    `json:"port,omitempty"`         // Ops API port

	// Switches
	AgentsEnabled   bool `json:"agents_enabled,omitempty"`    // Scheduler dispatches due agents
	FeedScanEnabled bool `json:"feed_scan_enabled,omitempty"` // Periodic feed ingestion runs

	// Schedules (robfig/cron specs)
	TickSchedule string `json:"tick_schedule,omitempty"`
	FeedSchedule string `json:"feed_schedule,omitempty"`

	// Workers
	Workers         int    `json:"workers,omitempty"`
	QueueSize       int    `json:"queue_size,omitempty"`
	MaxAttempts     int    `json:"max_attempts,omitempty"`
	RetryBackoff    string `json:"retry_backoff,omitempty"` // Go duration, e.g. "5m"
	AIConcurrency   int    `json:"ai_concurrency,omitempty"`
	FeedConcurrency int    `json:"feed_concurrency,omitempty"`

	// Logging
	LogFormat string `json:"log_format,omitempty"` // "text" or "json"
	LogLevel  string `json:"log_level,omitempty"`  // debug, info, warn, error
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:            DefaultPort,
		AgentsEnabled:   true,
		FeedScanEnabled: true,
		TickSchedule:    DefaultTickSchedule,
		FeedSchedule:    DefaultFeedSchedule,
		Workers:         DefaultWorkers,
		QueueSize:       DefaultQueueSize,
		MaxAttempts:     DefaultMaxAttempts,
		RetryBackoff:    DefaultRetryBackoff,
		AIConcurrency:   DefaultAIConcurrency,
		FeedConcurrency: DefaultFeedConcurrency,
		LogFormat:       "text",
		LogLevel:        "info",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Switches absent from the file keep their defaults.
	cfg := Config{AgentsEnabled: true, FeedScanEnabled: true}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: PORT must be an integer: %w", err)
		}
		c.Port = port
	}
	for key, dst := range map[string]*bool{
		"AGENTS_ENABLED":    &c.AgentsEnabled,
		"FEED_SCAN_ENABLED": &c.FeedScanEnabled,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config error: %s must be a boolean: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	// Validate numeric ranges
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	for name, v := range map[string]int{
		"workers":          c.Workers,
		"queue_size":       c.QueueSize,
		"max_attempts":     c.MaxAttempts,
		"ai_concurrency":   c.AIConcurrency,
		"feed_concurrency": c.FeedConcurrency,
	} {
		if v < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", name)
		}
	}

	if c.RetryBackoff != "" {
		if d, err := time.ParseDuration(c.RetryBackoff); err != nil || d < 0 {
			return fmt.Errorf("config error: 'retry_backoff' must be a non-negative duration")
		}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{"tick_schedule": c.TickSchedule, "feed_schedule": c.FeedSchedule} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("config error: '%s' is not a valid schedule: %w", name, err)
		}
	}

	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("config error: 'log_format' must be text or json")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.TickSchedule == "" {
		result.TickSchedule = defaults.TickSchedule
	}
	if result.FeedSchedule == "" {
		result.FeedSchedule = defaults.FeedSchedule
	}
	if result.RetryBackoff == "" {
		result.RetryBackoff = defaults.RetryBackoff
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.QueueSize == 0 {
		result.QueueSize = defaults.QueueSize
	}
	if result.MaxAttempts == 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.AIConcurrency == 0 {
		result.AIConcurrency = defaults.AIConcurrency
	}
	if result.FeedConcurrency == 0 {
		result.FeedConcurrency = defaults.FeedConcurrency
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (env and CLI flags should always win for bools)

	return result
}

// RetryBackoffDuration returns the parsed retry backoff, or the default when unset.
func (c *Config) RetryBackoffDuration() time.Duration {
	d, err := time.ParseDuration(c.RetryBackoff)
	if err != nil {
		d, _ = time.ParseDuration(DefaultRetryBackoff)
	}
	return d
}

// SlogLevel returns the configured log level, info when unset.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config error: unknown log level %q", s)
	}
}
