package config

// Default values for configuration options: "layer 0" of the override chain.
const (
	defaultServerURL          = "http://localhost:5555"
	defaultCSRFCookie         = "csrf_token"
	defaultCSRFHeader         = "X-CSRF-Token"
	defaultPollInterval       = "30s"
	defaultRevalidateInterval = "5m"
	defaultDropdownSize       = 3
	defaultConnectTimeout     = "10s"
	defaultRequestTimeout     = "30s"
	defaultUserAgent          = "bookswap/0.1"
	defaultRetryAttempts      = 3
	defaultLogLevel           = "warn"
	defaultLogFormat          = "auto"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields retain defaults.
// SessionFile stays empty here and is filled in by Resolve.
func DefaultConfig() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			ServerURL:  defaultServerURL,
			CSRFCookie: defaultCSRFCookie,
			CSRFHeader: defaultCSRFHeader,
		},
		SyncConfig: SyncConfig{
			PollInterval:       defaultPollInterval,
			RevalidateInterval: defaultRevalidateInterval,
			DropdownSize:       defaultDropdownSize,
		},
		NetworkConfig: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			RequestTimeout: defaultRequestTimeout,
			UserAgent:      defaultUserAgent,
			RetryAttempts:  defaultRetryAttempts,
		},
		LoggingConfig: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
