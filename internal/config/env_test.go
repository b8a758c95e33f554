package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv(EnvConfig, "/custom/config.toml")
	t.Setenv(EnvServerURL, "http://env.example.com")
	t.Setenv(EnvSessionFile, "/tmp/s.json")
	t.Setenv(EnvPassword, "hunter2")

	overrides, err := ReadEnvOverrides()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "http://env.example.com", overrides.ServerURL)
	assert.Equal(t, "/tmp/s.json", overrides.SessionFile)
	assert.Equal(t, "hunter2", overrides.Password)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvServerURL, "")
	t.Setenv(EnvSessionFile, "")
	t.Setenv(EnvPassword, "")

	overrides, err := ReadEnvOverrides()
	require.NoError(t, err)
	assert.Equal(t, EnvOverrides{}, overrides)
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "BOOKSWAP_CONFIG", EnvConfig)
	assert.Equal(t, "BOOKSWAP_SERVER_URL", EnvServerURL)
}
