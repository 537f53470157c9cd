package config

import (
	"github.com/spf13/viper"
)

// SetDefaults establishes the baseline configuration. Every key has a
// default so vidsaver runs with no config file at all.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.vidsaver/vidsaver.db")

	v.SetDefault("server.port", 8742)
	v.SetDefault("server.global_rate_per_second", 50)
	v.SetDefault("server.json_logs", false)

	v.SetDefault("downloads.root_directory", "~/Downloads/vidsaver")
	v.SetDefault("downloads.max_concurrent", 1)
	v.SetDefault("downloads.retry_delays_seconds", []int{60, 300, 900})
	v.SetDefault("downloads.poll_interval_seconds", 5)
	v.SetDefault("downloads.timeout_seconds", 300)
	v.SetDefault("downloads.min_free_mb", 512)
	v.SetDefault("downloads.cookie_file", "")

	v.SetDefault("security.rate_limit_per_owner", 100)
	v.SetDefault("security.rate_window_minutes", 60)
	v.SetDefault("security.allowed_domains", []string{})
	v.SetDefault("security.non_retryable_errors", []string{})
}
