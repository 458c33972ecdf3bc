// Package config provides configuration management for the commission service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COMMISSION_"

// Legacy store drivers.
const (
	LegacyDriverSQLite = "sqlite"
	LegacyDriverMongo  = "mongo"
	LegacyDriverNone   = "none"
)

// Config holds all configuration for the commission service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Legacy  LegacyConfig  `yaml:"legacy"`
	Rates   RatesConfig   `yaml:"rates"`
	Payout  PayoutConfig  `yaml:"payout"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// StoreConfig holds the new store configuration.
type StoreConfig struct {
	Path string `yaml:"path" env:"DB_PATH"`
}

// LegacyConfig holds the legacy store configuration.
type LegacyConfig struct {
	Driver     string `yaml:"driver" env:"LEGACY_DRIVER"`
	Path       string `yaml:"path" env:"LEGACY_DB_PATH"`
	MongoURI   string `yaml:"mongo_uri" env:"MONGO_URI"`
	Database   string `yaml:"database" env:"MONGO_DATABASE"`
	Collection string `yaml:"collection" env:"MONGO_COLLECTION"`
}

// RatesConfig points at an optional rate table file. Empty uses the
// built-in table.
type RatesConfig struct {
	File string `yaml:"file" env:"RATES_FILE"`
}

// PayoutConfig holds payout batch configuration.
type PayoutConfig struct {
	Concurrency int `yaml:"concurrency" env:"PAYOUT_CONCURRENCY"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Store: StoreConfig{Path: "./data/commissions.db"},
		Legacy: LegacyConfig{
			Driver:     LegacyDriverSQLite,
			Path:       "./data/legacy.db",
			Database:   "getmydpc",
			Collection: "commissions",
		},
		Payout:  PayoutConfig{Concurrency: 4},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from file and environment variables. A missing
// file is not an error; defaults and environment apply.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}

	c.Legacy.Driver = strings.ToLower(strings.TrimSpace(c.Legacy.Driver))
	switch c.Legacy.Driver {
	case LegacyDriverNone:
	case LegacyDriverSQLite:
		if c.Legacy.Path == "" {
			return fmt.Errorf("legacy path is required for the sqlite driver")
		}
	case LegacyDriverMongo:
		if c.Legacy.MongoURI == "" || c.Legacy.Database == "" {
			return fmt.Errorf("legacy mongo_uri and database are required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown legacy driver: %q", c.Legacy.Driver)
	}

	if c.Payout.Concurrency < 1 {
		return fmt.Errorf("payout concurrency must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	return nil
}

// NewLogger builds the zap logger described by the logging section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if c.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}
