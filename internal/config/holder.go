package config

import (
	"fmt"
	"sync"
)

// Reload is the outcome of re-reading the config of a running watcher.
// Live lists changed keys the watcher applies in place; Restart lists
// changed keys that only take effect on the next start.
type Reload struct {
	Config  *Config
	Live    []string
	Restart []string
}

// Changed reports whether the reload altered anything.
func (r Reload) Changed() bool {
	return len(r.Live)+len(r.Restart) > 0
}

// Holder is the live config of the watch command. File events and SIGHUP
// both reload through it, so reloads are serialized and each one is diffed
// against the config it replaces.
type Holder struct {
	mu   sync.Mutex
	cfg  *Config
	path string
	env  EnvOverrides
	cli  CLIOverrides
}

// NewHolder wraps cfg, which was resolved from path with env and cli.
func NewHolder(cfg *Config, path string, env EnvOverrides, cli CLIOverrides) *Holder {
	return &Holder{cfg: cfg, path: path, env: env, cli: cli}
}

// Config returns the current config.
func (h *Holder) Config() *Config {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.cfg
}

// Path returns the config file path.
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads the file and re-applies the environment and flag layers.
// A config that fails to load or validate leaves the current one in place.
func (h *Holder) Reload() (Reload, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := LoadOrDefault(h.path)
	if err != nil {
		return Reload{Config: h.cfg}, err
	}

	ApplyOverrides(cfg, h.env, h.cli)

	if err := Validate(cfg); err != nil {
		return Reload{Config: h.cfg}, fmt.Errorf("config validation: %w", err)
	}

	r := diffConfigs(h.cfg, cfg)
	h.cfg = cfg

	return r, nil
}

func diffConfigs(old, cur *Config) Reload {
	r := Reload{Config: cur}

	live := []struct {
		key     string
		changed bool
	}{
		{"poll_interval", old.PollEvery() != cur.PollEvery()},
		{"revalidate_interval", old.RevalidateEvery() != cur.RevalidateEvery()},
	}

	restart := []struct {
		key     string
		changed bool
	}{
		{"server_url", old.ServerURL != cur.ServerURL},
		{"session_file", old.SessionFile != cur.SessionFile},
		{"csrf_cookie", old.CSRFCookie != cur.CSRFCookie},
		{"csrf_header", old.CSRFHeader != cur.CSRFHeader},
		{"dropdown_size", old.DropdownSize != cur.DropdownSize},
		{"connect_timeout", old.ConnectTimeoutDuration() != cur.ConnectTimeoutDuration()},
		{"request_timeout", old.RequestTimeoutDuration() != cur.RequestTimeoutDuration()},
		{"user_agent", old.UserAgent != cur.UserAgent},
		{"log_level", old.LogLevel != cur.LogLevel},
		{"log_format", old.LogFormat != cur.LogFormat},
	}

	for _, k := range live {
		if k.changed {
			r.Live = append(r.Live, k.key)
		}
	}

	for _, k := range restart {
		if k.changed {
			r.Restart = append(r.Restart, k.key)
		}
	}

	return r
}
