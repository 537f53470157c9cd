// Package config loads the vidsaver configuration from file, environment
// and defaults using Viper.
package config

// Config represents the core vidsaver configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// GlobalRatePerSecond throttles all request handling server-wide,
	// independent of the per-owner admission gate. 0 disables it.
	GlobalRatePerSecond int  `mapstructure:"global_rate_per_second"`
	JSONLogs            bool `mapstructure:"json_logs"`
}

// DownloadsConfig configures the download queue and worker
type DownloadsConfig struct {
	RootDirectory       string `mapstructure:"root_directory"`
	MaxConcurrent       int    `mapstructure:"max_concurrent"`
	RetryDelaysSeconds  []int  `mapstructure:"retry_delays_seconds"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	MinFreeMB           int    `mapstructure:"min_free_mb"`
	CookieFile          string `mapstructure:"cookie_file"`
}

// SecurityConfig configures admission control
type SecurityConfig struct {
	// RateLimitPerOwner is the maximum submissions per owner per window
	RateLimitPerOwner int `mapstructure:"rate_limit_per_owner"`
	// RateWindowMinutes is the sliding window length
	RateWindowMinutes int `mapstructure:"rate_window_minutes"`
	// AllowedDomains whitelists submission hosts; empty allows all
	AllowedDomains []string `mapstructure:"allowed_domains"`
	// NonRetryableErrors overrides the fetch error classifier patterns
	NonRetryableErrors []string `mapstructure:"non_retryable_errors"`
}
