// Package config loads istore settings from istore.yaml and ISTORE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/istore/internal/storage"
)

// Config represents the istore configuration
type Config struct {
	LogLevel       string        `mapstructure:"log_level"`
	LogDevelopment bool          `mapstructure:"log_development"`
	SearchPaths    []string      `mapstructure:"search_paths"`
	HTTP           HTTPConfig    `mapstructure:"http"`
	Storage        StorageConfig `mapstructure:"storage"`
}

// HTTPConfig configures the read API server
type HTTPConfig struct {
	Listen      string        `mapstructure:"listen"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// StorageConfig holds storage defaults
type StorageConfig struct {
	DefaultMode string `mapstructure:"default_mode"`
}

// Defaults used when neither the file nor the environment sets a key.
const (
	DefaultLogLevel    = "info"
	DefaultListen      = "localhost:8080"
	DefaultReadTimeout = 10 * time.Second
)

// Load reads configuration. An explicit path must exist; without one
// istore.yaml is looked up in the working directory and is optional.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_development", false)
	v.SetDefault("search_paths", []string{})
	v.SetDefault("http.listen", DefaultListen)
	v.SetDefault("http.read_timeout", DefaultReadTimeout)
	v.SetDefault("storage.default_mode", string(storage.ModeAppend))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("istore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ISTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// A comma separated ISTORE_SEARCH_PATHS arrives as a single element.
	if len(cfg.SearchPaths) == 1 && strings.Contains(cfg.SearchPaths[0], ",") {
		cfg.SearchPaths = strings.Split(cfg.SearchPaths[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if strings.TrimSpace(c.HTTP.Listen) == "" {
		return fmt.Errorf("http.listen must not be empty")
	}
	if c.HTTP.ReadTimeout < 0 {
		return fmt.Errorf("http.read_timeout must not be negative, got %s", c.HTTP.ReadTimeout)
	}
	switch storage.Mode(c.Storage.DefaultMode) {
	case storage.ModeRead, storage.ModeWrite, storage.ModeAppend:
	default:
		return fmt.Errorf("storage.default_mode must be one of r, w, a, got %q", c.Storage.DefaultMode)
	}
	for _, raw := range c.SearchPaths {
		if _, err := storage.ParseURL(raw); err != nil {
			return fmt.Errorf("search_paths: %w", err)
		}
	}
	return nil
}

// Level returns the parsed log level. It assumes Validate passed.
func (c *Config) Level() zapcore.Level {
	l, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}
