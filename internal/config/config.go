package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Storage  StorageConfig  `mapstructure:"storage"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TelegramConfig holds bot credentials and the admin allow-list
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	AdminIDs       []int64       `mapstructure:"admin_ids"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// PollerConfig holds change-detection schedule configuration
type PollerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	FirstRunDelay time.Duration `mapstructure:"first_run_delay"`
}

// StorageConfig selects and configures the placard database
type StorageConfig struct {
	Driver       string `mapstructure:"driver"` // postgres or sqlite
	DBPath       string `mapstructure:"db_path"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// HTTPConfig holds the ops endpoint configuration (/metrics, /healthz, /status)
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// PLACARDWATCH_TELEGRAM_BOT_TOKEN overrides telegram.bot_token
	v.SetEnvPrefix("PLACARDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Telegram defaults
	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Poller defaults
	v.SetDefault("poller.interval", "60s")
	v.SetDefault("poller.first_run_delay", "10s")

	// Storage defaults
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.host", "localhost")
	v.SetDefault("storage.port", 5432)
	v.SetDefault("storage.sslmode", "prefer")
	v.SetDefault("storage.max_open_conns", 10)

	// HTTP defaults
	v.SetDefault("http.enabled", false)
	v.SetDefault("http.addr", ":9090")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Telegram config
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	if c.Telegram.MaxRetries < 0 {
		return fmt.Errorf("telegram.max_retries must not be negative")
	}

	// Validate Poller config
	if c.Poller.Interval < time.Second {
		return fmt.Errorf("poller.interval must be at least 1 second")
	}
	if c.Poller.FirstRunDelay < 0 {
		return fmt.Errorf("poller.first_run_delay must not be negative")
	}

	// Validate Storage config
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.Host == "" {
			return fmt.Errorf("storage.host is required for the postgres driver")
		}
		if c.Storage.Name == "" {
			return fmt.Errorf("storage.name is required for the postgres driver")
		}
		if c.Storage.Port < 1 || c.Storage.Port > 65535 {
			return fmt.Errorf("storage.port must be between 1 and 65535")
		}
	case "sqlite":
	default:
		return fmt.Errorf("storage.driver must be one of: postgres, sqlite")
	}
	if c.Storage.MaxOpenConns < 1 {
		return fmt.Errorf("storage.max_open_conns must be at least 1")
	}

	// Validate HTTP config
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required when http is enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// IsAdmin reports whether userID is on the admin allow-list
func (c *TelegramConfig) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
