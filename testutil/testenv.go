// Package testutil provides shared test environment helpers for E2E tests.
// It lives outside internal/ so the e2e package can import it.
package testutil

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "WARNING: reading %s: %v\n", envPath, err)
	}
}

// ValidateServer crashes the process unless the server named by serverEnvVar
// is a valid URL whose host is listed in BOOKSWAP_ALLOWED_TEST_HOSTS. E2E
// tests create and delete accounts, so they must never reach production.
func ValidateServer(serverEnvVar string) string {
	allowlist := os.Getenv("BOOKSWAP_ALLOWED_TEST_HOSTS")
	if allowlist == "" {
		fmt.Fprintln(os.Stderr, "FATAL: BOOKSWAP_ALLOWED_TEST_HOSTS not set")
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintln(os.Stderr, "Example: BOOKSWAP_ALLOWED_TEST_HOSTS=localhost:5555")
		os.Exit(1)
	}

	raw := os.Getenv(serverEnvVar)
	if raw == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", serverEnvVar)
		os.Exit(1)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not a URL\n", serverEnvVar, raw)
		os.Exit(1)
	}

	for _, h := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(h) == u.Host {
			return raw
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s host %q is not in BOOKSWAP_ALLOWED_TEST_HOSTS=%q\n",
		serverEnvVar, u.Host, allowlist)
	os.Exit(1)

	return ""
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// IsolateHome points HOME and the XDG directories at subdirectories of root
// so the CLI under test never reads or writes the developer's own config,
// session or watcher lock files.
func IsolateHome(root string) error {
	dirs := map[string]string{
		"HOME":            root,
		"XDG_CONFIG_HOME": filepath.Join(root, "config"),
		"XDG_DATA_HOME":   filepath.Join(root, "data"),
	}

	for key, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}

		if err := os.Setenv(key, dir); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}

	// Explicit overrides would bypass the isolated defaults.
	for _, key := range []string{"BOOKSWAP_CONFIG", "BOOKSWAP_SESSION_FILE"} {
		os.Unsetenv(key)
	}

	return nil
}
