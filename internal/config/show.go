package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as TOML-like text to w.
// This powers "config show": the values after all four override layers.
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", displayPath(path))

	ew.printf("# server\n")
	ew.printf("server_url   = %q\n", cfg.ServerURL)
	ew.printf("csrf_cookie  = %q\n", cfg.CSRFCookie)
	ew.printf("csrf_header  = %q\n", cfg.CSRFHeader)
	ew.printf("session_file = %q\n\n", cfg.SessionFile)

	ew.printf("# sync\n")
	ew.printf("poll_interval       = %q\n", cfg.PollInterval)
	ew.printf("revalidate_interval = %q\n", cfg.RevalidateInterval)
	ew.printf("dropdown_size       = %d\n\n", cfg.DropdownSize)

	ew.printf("# network\n")
	ew.printf("connect_timeout = %q\n", cfg.ConnectTimeout)
	ew.printf("request_timeout = %q\n", cfg.RequestTimeout)
	ew.printf("user_agent      = %q\n", cfg.UserAgent)
	ew.printf("retry_attempts  = %d\n\n", cfg.RetryAttempts)

	ew.printf("# logging\n")
	ew.printf("log_level  = %q\n", cfg.LogLevel)
	ew.printf("log_format = %q\n", cfg.LogFormat)

	return ew.err
}

func displayPath(path string) string {
	if path == "" {
		return "none"
	}

	return path
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
