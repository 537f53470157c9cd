package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/vidsaver/vidsaver/errors"
)

// Load reads configuration with precedence: defaults < config file < env.
// Environment variables use the VIDSAVER_ prefix with underscores, e.g.
// VIDSAVER_DOWNLOADS_MAX_CONCURRENT=3.
func Load() (*Config, error) {
	v := initViper()

	// Config file is optional; defaults plus env are a complete configuration.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return unmarshal(v)
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&config); err != nil {
		return nil, err
	}
	config.Downloads.RootDirectory = expandHome(config.Downloads.RootDirectory)
	config.Database.Path = expandHome(config.Database.Path)
	config.Downloads.CookieFile = expandHome(config.Downloads.CookieFile)
	return &config, nil
}

func initViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("VIDSAVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("vidsaver")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "vidsaver"))
	}

	return v
}

// Validate rejects configurations the queue cannot run with.
func Validate(c *Config) error {
	if c.Downloads.MaxConcurrent < 1 || c.Downloads.MaxConcurrent > 10 {
		return errors.Newf("downloads.max_concurrent must be between 1 and 10, got %d", c.Downloads.MaxConcurrent)
	}
	if len(c.Downloads.RetryDelaysSeconds) == 0 {
		return errors.New("downloads.retry_delays_seconds cannot be empty")
	}
	for _, d := range c.Downloads.RetryDelaysSeconds {
		if d <= 0 {
			return errors.Newf("retry delays must be positive, got %d", d)
		}
	}
	if c.Security.RateLimitPerOwner < 1 {
		return errors.Newf("security.rate_limit_per_owner must be at least 1, got %d", c.Security.RateLimitPerOwner)
	}
	return nil
}

// expandHome expands a leading ~ in paths.
func expandHome(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
