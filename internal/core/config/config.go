// Package config provides configuration management for sortdl services.
package config

import (
	"net/url"
	"time"
)

// Config is the complete sortdl configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Downloads DownloadsConfig
	Log       LogConfig
	Rules     RulesConfig
}

// ServerConfig holds configuration for the gRPC suggest service.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration

	// APIKey, when set, is required in x-api-key metadata on every call
	// except health checks. Environment only (SORTDL_SERVER_API_KEY).
	APIKey string
}

// DatabaseConfig selects the rule store.
// URL is sqlite://path or postgres://...
type DatabaseConfig struct {
	URL string
}

// DownloadsConfig holds download defaults applied when a matched rule does
// not set them.
type DownloadsConfig struct {
	// DefaultConflict seeds the settings store on first run. Once stored,
	// the stored value wins.
	DefaultConflict string
}

// LogConfig configures logrus output. An empty File logs to stderr;
// otherwise output is rotated by lumberjack.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// RulesConfig controls how the running service tracks the rule store.
type RulesConfig struct {
	// ReloadInterval between rule store polls. Zero disables reloading.
	ReloadInterval time.Duration

	// SeedDefaults installs the default rules when the store is empty.
	SeedDefaults bool
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           50061,
			RequestTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			URL: "sqlite://sortdl.db",
		},
		Downloads: DownloadsConfig{
			DefaultConflict: "uniquify",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Rules: RulesConfig{
			ReloadInterval: 30 * time.Second,
			SeedDefaults:   true,
		},
	}
}

// hasPassword reports whether a database URL embeds a password.
func hasPassword(dbURL string) bool {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}
