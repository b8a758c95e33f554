package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation range constants.
const (
	minPollInterval   = 1 * time.Second
	minConnectTimeout = 1 * time.Second
	minRequestTimeout = 1 * time.Second
	minDropdownSize   = 1
	maxDropdownSize   = 50
	minRetryAttempts  = 1
	maxRetryAttempts  = 10
)

// Validate checks all configuration values and returns all errors found.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.ServerConfig)...)
	errs = append(errs, validateSync(&cfg.SyncConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)

	return errors.Join(errs...)
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	u, err := url.Parse(s.ServerURL)

	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("server_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("server_url: scheme must be http or https, got %q", s.ServerURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("server_url: missing host in %q", s.ServerURL))
	}

	if s.CSRFCookie == "" {
		errs = append(errs, errors.New("csrf_cookie: must not be empty"))
	}

	if s.CSRFHeader == "" {
		errs = append(errs, errors.New("csrf_header: must not be empty"))
	}

	return errs
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	errs = append(errs, validateDuration("poll_interval", s.PollInterval, minPollInterval)...)
	errs = append(errs, validateDuration("revalidate_interval", s.RevalidateInterval, minPollInterval)...)

	if s.DropdownSize < minDropdownSize || s.DropdownSize > maxDropdownSize {
		errs = append(errs, fmt.Errorf("dropdown_size: must be between %d and %d, got %d",
			minDropdownSize, maxDropdownSize, s.DropdownSize))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDuration("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDuration("request_timeout", n.RequestTimeout, minRequestTimeout)...)

	if n.RetryAttempts < minRetryAttempts || n.RetryAttempts > maxRetryAttempts {
		errs = append(errs, fmt.Errorf("retry_attempts: must be between %d and %d, got %d",
			minRetryAttempts, maxRetryAttempts, n.RetryAttempts))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

func validateDuration(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be at least %s, got %s", field, minimum, value)}
	}

	return nil
}
