package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName         = "bookswap"
	configFileName  = "config.toml"
	sessionFileName = "session.json"
	watchersDirName = "watchers"
)

// userDir identifies one of the per-user directories bookswap writes to.
type userDir struct {
	xdgVar   string   // honored on Linux only
	fallback []string // below $HOME when xdgVar is unset, and off Linux/macOS
}

var (
	configHome = userDir{xdgVar: "XDG_CONFIG_HOME", fallback: []string{".config"}}
	dataHome   = userDir{xdgVar: "XDG_DATA_HOME", fallback: []string{".local", "share"}}
)

// resolve places appName inside d for the given platform. macOS keeps config
// and data together under Application Support.
func (d userDir) resolve(goos, home string, getenv func(string) string) string {
	if home == "" {
		return ""
	}

	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName)
	case "linux":
		if xdg := getenv(d.xdgVar); xdg != "" {
			return filepath.Join(xdg, appName)
		}
	}

	parts := append([]string{home}, d.fallback...)

	return filepath.Join(append(parts, appName)...)
}

func (d userDir) current() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return d.resolve(runtime.GOOS, home, os.Getenv)
}

// DefaultConfigDir holds config.toml.
func DefaultConfigDir() string {
	return configHome.current()
}

// DefaultDataDir holds the session file and the watcher locks.
func DefaultDataDir() string {
	return dataHome.current()
}

// DefaultConfigPath is used when neither BOOKSWAP_CONFIG nor --config is set.
func DefaultConfigPath() string {
	return under(DefaultConfigDir(), configFileName)
}

// DefaultSessionFile is used when session_file is not configured.
func DefaultSessionFile() string {
	return under(DefaultDataDir(), sessionFileName)
}

// DefaultWatchersDir holds one lock file per running `bookswap watch`.
func DefaultWatchersDir() string {
	return under(DefaultDataDir(), watchersDirName)
}

func under(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}
