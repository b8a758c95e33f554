package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_WithSuggestion(t *testing.T) {
	path := writeTestConfig(t, `pol_interval = "10s"`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), `did you mean "poll_interval"`)
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, `completely_unrelated_key = true`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_UnknownKey_InTable(t *testing.T) {
	path := writeTestConfig(t, "[network]\nuser_agent = \"x\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"network.user_agent"`)
	assert.Contains(t, err.Error(), `did you mean "user_agent"`)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"log_levl", "log_level", 1},
		{"server", "server_url", 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b), "levenshtein(%q, %q)", tt.a, tt.b)
	}
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "csrf_header", closestMatch("csrf_headr", knownKeysList))
	assert.Equal(t, "dropdown_size", closestMatch("dropdown_sise", knownKeysList))
	assert.Empty(t, closestMatch("zzzzzzzzzz", knownKeysList))
}
