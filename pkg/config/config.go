// Package config holds tunables for the connection layer. Values come
// from a YAML file (dbconn.yaml) or environment variables; environment
// variables always override YAML values. Secrets (passwords) never live
// here — they belong in the connection descriptor.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/dbconn/pkg/descriptor"
	"github.com/ekaya-inc/dbconn/pkg/retry"
)

// Config holds connection-layer settings.
type Config struct {
	// Pool limits applied to every opened sql.DB handle.
	MaxOpenConns int `yaml:"max_open_conns" env:"DBCONN_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns int `yaml:"max_idle_conns" env:"DBCONN_MAX_IDLE_CONNS" env-default:"5"`

	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" env:"DBCONN_CONN_MAX_LIFETIME_MINUTES" env-default:"30"`
	ConnMaxIdleTimeMinutes int `yaml:"conn_max_idle_time_minutes" env:"DBCONN_CONN_MAX_IDLE_TIME_MINUTES" env-default:"5"`

	// DefaultIsolation applies when a descriptor leaves the isolation
	// level unset. "none" keeps the vendor default.
	DefaultIsolation string `yaml:"default_isolation" env:"DBCONN_DEFAULT_ISOLATION" env-default:"none"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig holds backoff settings for connection establishment.
type RetryConfig struct {
	MaxRetries          int `yaml:"max_retries" env:"DBCONN_RETRY_MAX_RETRIES" env-default:"3"`
	InitialDelayMillis  int `yaml:"initial_delay_millis" env:"DBCONN_RETRY_INITIAL_DELAY_MILLIS" env-default:"100"`
	MaxDelayMillis      int `yaml:"max_delay_millis" env:"DBCONN_RETRY_MAX_DELAY_MILLIS" env-default:"5000"`
	MultiplierHundredth int `yaml:"multiplier_hundredth" env:"DBCONN_RETRY_MULTIPLIER_HUNDREDTH" env-default:"200"`
}

// Load reads configuration from environment variables only.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from a YAML file with environment
// variable overrides.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := descriptor.ParseIsolation(c.DefaultIsolation); err != nil {
		return fmt.Errorf("invalid default_isolation: %w", err)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns (%d) may not exceed max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// Isolation returns the parsed default isolation level.
func (c *Config) Isolation() descriptor.Isolation {
	iso, err := descriptor.ParseIsolation(c.DefaultIsolation)
	if err != nil {
		return descriptor.IsolationNone
	}
	return iso
}

// ConnMaxLifetime returns the pool lifetime as a duration.
func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// ConnMaxIdleTime returns the pool idle timeout as a duration.
func (c *Config) ConnMaxIdleTime() time.Duration {
	return time.Duration(c.ConnMaxIdleTimeMinutes) * time.Minute
}

// RetryOptions converts the retry settings into a retry.Config.
func (c *Config) RetryOptions() *retry.Config {
	return &retry.Config{
		MaxRetries:   c.Retry.MaxRetries,
		InitialDelay: time.Duration(c.Retry.InitialDelayMillis) * time.Millisecond,
		MaxDelay:     time.Duration(c.Retry.MaxDelayMillis) * time.Millisecond,
		Multiplier:   float64(c.Retry.MultiplierHundredth) / 100,
		JitterFactor: 0.1,
	}
}
