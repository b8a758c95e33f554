// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for bookswap. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags) and a
// file watcher that reloads the configuration of long-running commands.
package config

import "time"

// Config is the configuration parsed from a TOML file. All keys are flat
// top-level keys; durations are strings in time.ParseDuration form.
type Config struct {
	ServerConfig
	SyncConfig
	NetworkConfig
	LoggingConfig
}

// ServerConfig describes the marketplace API and where its session is kept.
type ServerConfig struct {
	ServerURL   string `toml:"server_url"`
	CSRFCookie  string `toml:"csrf_cookie"`
	CSRFHeader  string `toml:"csrf_header"`
	SessionFile string `toml:"session_file"`
}

// SyncConfig controls background polling of user-scoped collections.
type SyncConfig struct {
	PollInterval       string `toml:"poll_interval"`
	RevalidateInterval string `toml:"revalidate_interval"`
	DropdownSize       int    `toml:"dropdown_size"`
}

// NetworkConfig controls HTTP client behavior. RetryAttempts applies only to
// idempotent reads issued by the CLI.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	RequestTimeout string `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// CLIOverrides holds values from CLI flags. Pointer fields distinguish "not
// specified" (nil) from "explicitly set".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	ServerURL  *string // --server flag
}

// PollEvery returns the parsed poll interval. The value is validated on
// load, so a parse failure falls back to the default.
func (c *Config) PollEvery() time.Duration {
	return durationOr(c.PollInterval, defaultPollInterval)
}

// RevalidateEvery returns the parsed session re-validation interval.
func (c *Config) RevalidateEvery() time.Duration {
	return durationOr(c.RevalidateInterval, defaultRevalidateInterval)
}

// ConnectTimeoutDuration returns the parsed connect timeout.
func (c *Config) ConnectTimeoutDuration() time.Duration {
	return durationOr(c.ConnectTimeout, defaultConnectTimeout)
}

// RequestTimeoutDuration returns the parsed per-request timeout.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return durationOr(c.RequestTimeout, defaultRequestTimeout)
}

func durationOr(s, fallback string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	d, _ := time.ParseDuration(fallback)

	return d
}
