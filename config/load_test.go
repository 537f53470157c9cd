package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func defaultViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestDefaultsAreComplete(t *testing.T) {
	cfg, err := LoadWithViper(defaultViper())
	if err != nil {
		t.Fatalf("defaults should produce a valid config: %v", err)
	}

	if cfg.Downloads.MaxConcurrent != 1 {
		t.Errorf("expected 1 concurrent download by default, got %d", cfg.Downloads.MaxConcurrent)
	}
	if cfg.Downloads.PollIntervalSeconds != 5 {
		t.Errorf("expected 5s poll interval, got %d", cfg.Downloads.PollIntervalSeconds)
	}
	if cfg.Downloads.TimeoutSeconds != 300 {
		t.Errorf("expected 300s timeout, got %d", cfg.Downloads.TimeoutSeconds)
	}
	want := []int{60, 300, 900}
	if len(cfg.Downloads.RetryDelaysSeconds) != len(want) {
		t.Fatalf("expected %v retry delays, got %v", want, cfg.Downloads.RetryDelaysSeconds)
	}
	for i, d := range want {
		if cfg.Downloads.RetryDelaysSeconds[i] != d {
			t.Errorf("retry delay %d: expected %d, got %d", i, d, cfg.Downloads.RetryDelaysSeconds[i])
		}
	}
	if cfg.Security.RateLimitPerOwner != 100 || cfg.Security.RateWindowMinutes != 60 {
		t.Errorf("expected 100 submissions per 60 minutes, got %d per %d",
			cfg.Security.RateLimitPerOwner, cfg.Security.RateWindowMinutes)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vidsaver.toml")
	content := `
[server]
port = 9000

[downloads]
max_concurrent = 3
retry_delays_seconds = [10, 20]

[security]
rate_limit_per_owner = 5
allowed_domains = ["youtube.com", "vimeo.com"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Downloads.MaxConcurrent != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Downloads.MaxConcurrent)
	}
	if len(cfg.Downloads.RetryDelaysSeconds) != 2 {
		t.Errorf("expected file to override retry delays, got %v", cfg.Downloads.RetryDelaysSeconds)
	}
	if len(cfg.Security.AllowedDomains) != 2 {
		t.Errorf("expected 2 allowed domains, got %v", cfg.Security.AllowedDomains)
	}
	// Unset keys keep their defaults.
	if cfg.Downloads.PollIntervalSeconds != 5 {
		t.Errorf("expected default poll interval, got %d", cfg.Downloads.PollIntervalSeconds)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/vidsaver.toml"); err == nil {
		t.Error("missing explicit config file should fail")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*viper.Viper)
	}{
		{"zero workers", func(v *viper.Viper) { v.Set("downloads.max_concurrent", 0) }},
		{"too many workers", func(v *viper.Viper) { v.Set("downloads.max_concurrent", 11) }},
		{"empty retry delays", func(v *viper.Viper) { v.Set("downloads.retry_delays_seconds", []int{}) }},
		{"negative retry delay", func(v *viper.Viper) { v.Set("downloads.retry_delays_seconds", []int{-1}) }},
		{"zero rate limit", func(v *viper.Viper) { v.Set("security.rate_limit_per_owner", 0) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := defaultViper()
			tc.mutate(v)
			if _, err := LoadWithViper(v); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	got := expandHome("~/.vidsaver/vidsaver.db")
	want := filepath.Join(home, ".vidsaver", "vidsaver.db")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	if expandHome("/absolute/path") != "/absolute/path" {
		t.Error("absolute paths should pass through untouched")
	}
	if expandHome("") != "" {
		t.Error("empty path should pass through")
	}
}
