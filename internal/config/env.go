package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Environment variable names for overrides.
const (
	EnvConfig      = "BOOKSWAP_CONFIG"
	EnvServerURL   = "BOOKSWAP_SERVER_URL"
	EnvSessionFile = "BOOKSWAP_SESSION_FILE"
	EnvPassword    = "BOOKSWAP_PASSWORD"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath  string `env:"BOOKSWAP_CONFIG"`
	ServerURL   string `env:"BOOKSWAP_SERVER_URL"`
	SessionFile string `env:"BOOKSWAP_SESSION_FILE"`
	// Password lets scripts log in without a prompt. Never logged.
	Password string `env:"BOOKSWAP_PASSWORD"`
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify a Config; Resolve applies the relevant fields.
func ReadEnvOverrides() (EnvOverrides, error) {
	var overrides EnvOverrides
	if err := env.Parse(&overrides); err != nil {
		return EnvOverrides{}, fmt.Errorf("reading environment: %w", err)
	}

	return overrides, nil
}
