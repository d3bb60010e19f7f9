package config

import (
	"fmt"
	"time"
)

// Config holds all runner configuration
type Config struct {
	// Environment selection
	EnvID string `mapstructure:"env_id"`

	// Rollout shape
	SessionLength int `mapstructure:"session_length"`
	BatchSize     int `mapstructure:"batch_size"`

	// Network shape
	HiddenWidth int `mapstructure:"hidden_width"`
	Actions     int `mapstructure:"actions"`

	// Run management
	MaxRollouts   int           `mapstructure:"max_rollouts"`
	FlushSize     int           `mapstructure:"flush_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	BufferSize    int           `mapstructure:"buffer_size"`

	// Evaluation
	Seed          int64 `mapstructure:"seed"`
	Deterministic bool  `mapstructure:"deterministic"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		EnvID:         "counter",
		SessionLength: 32,
		BatchSize:     16,
		HiddenWidth:   8,
		Actions:       3,
		MaxRollouts:   100,
		FlushSize:     8,
		FlushInterval: 5 * time.Second,
		BufferSize:    1024,
		Seed:          1,
		Deterministic: false,
		LogLevel:      "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.EnvID == "" {
		return fmt.Errorf("env_id is required")
	}
	if c.SessionLength < 1 {
		return fmt.Errorf("session_length must be positive")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.HiddenWidth < 1 {
		return fmt.Errorf("hidden_width must be positive")
	}
	if c.Actions < 2 {
		return fmt.Errorf("actions must be at least 2")
	}
	if c.FlushSize < 1 {
		return fmt.Errorf("flush_size must be positive")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive")
	}
	return nil
}
