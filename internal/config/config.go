// Package config loads dashboard configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Folder pairs a daemon folder ID with its local root directory.
type Folder struct {
	ID   string
	Root string
}

// Config is the full dashboard configuration.
type Config struct {
	Daemon struct {
		// URL of the sync daemon's REST API.
		URL string
		// APIKey sent as X-API-Key on every request.
		APIKey string `mapstructure:"api_key"`
		// PageSize for paginated status endpoints.
		PageSize int `mapstructure:"page_size"`
	}
	Cache struct {
		// Path to the SQLite cache database.
		Path string
		// TTL for cached category rows.
		TTL time.Duration
	}
	Dashboard struct {
		// Port for the WebSocket feed.
		Port int
	}
	Pipeline struct {
		// InFlightTimeout bounds how long a folder's re-fetch blocks
		// further refresh attempts.
		InFlightTimeout time.Duration `mapstructure:"in_flight_timeout"`
	}
	Watch struct {
		// Enabled turns the local filesystem watcher on.
		Enabled bool
		// DebounceInterval batches rapid filesystem events.
		DebounceInterval time.Duration `mapstructure:"debounce_interval"`
	}
	Logging struct {
		// File receives a rotated copy of the log stream when set.
		File string
		// MaxSizeMB caps each rotated log file.
		MaxSizeMB int `mapstructure:"max_size_mb"`
		// MaxBackups caps how many rotated files are kept.
		MaxBackups int `mapstructure:"max_backups"`
	}
	Folders []Folder
}

// Load reads configuration, optionally from an explicit file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("$HOME/.syncdeck")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/syncdeck")
	}

	v.SetEnvPrefix("SYNCDECK")
	v.AutomaticEnv()

	v.SetDefault("daemon.url", "http://127.0.0.1:8384")
	v.SetDefault("daemon.page_size", 100)
	v.SetDefault("cache.path", "syncdeck.db")
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("dashboard.port", 8385)
	v.SetDefault("pipeline.in_flight_timeout", 30*time.Second)
	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce_interval", 500*time.Millisecond)
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}
