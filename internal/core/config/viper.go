package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/solatis/sortdl/internal/core/auth"
	"github.com/solatis/sortdl/internal/types"
)

// flagKeys maps CLI flag names to config keys. Flags missing from the
// FlagSet handed to LoadConfig are skipped.
var flagKeys = map[string]string{
	"host":             "server.host",
	"port":             "server.port",
	"request-timeout":  "server.request_timeout",
	"db-url":           "database.url",
	"default-conflict": "downloads.default_conflict",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"log-file":         "log.file",
	"reload-interval":  "rules.reload_interval",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Checked before env and flags are bound so only file values are seen.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	// Bind environment variables with SORTDL_ prefix
	v.SetEnvPrefix("SORTDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			APIKey:         v.GetString("server.api_key"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Downloads: DownloadsConfig{
			DefaultConflict: v.GetString("downloads.default_conflict"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		Rules: RulesConfig{
			ReloadInterval: v.GetDuration("rules.reload_interval"),
			SeedDefaults:   v.GetBool("rules.seed_defaults"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("downloads.default_conflict", d.Downloads.DefaultConflict)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("rules.reload_interval", d.Rules.ReloadInterval.String())
	v.SetDefault("rules.seed_defaults", d.Rules.SeedDefaults)
}

// validateConfig checks port range, timeouts, the conflict action and log settings.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.APIKey != "" {
		if err := auth.ValidateAPIKey(cfg.Server.APIKey); err != nil {
			return fmt.Errorf("server.api_key: %w", err)
		}
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url must not be empty")
	}
	if _, err := types.ParseConflictAction(cfg.Downloads.DefaultConflict); err != nil {
		return fmt.Errorf("downloads.default_conflict: %w", err)
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must not be negative")
	}
	if cfg.Rules.ReloadInterval < 0 {
		return fmt.Errorf("reload_interval must not be negative, got %v", cfg.Rules.ReloadInterval)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets: database
// passwords and the server API key.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("database.url") && hasPassword(v.GetString("database.url")) {
		return fmt.Errorf("database passwords not allowed in config files (use SORTDL_DATABASE_URL environment variable)")
	}
	if v.InConfig("server.api_key") {
		return fmt.Errorf("API keys not allowed in config files (use SORTDL_SERVER_API_KEY environment variable)")
	}
	return nil
}
