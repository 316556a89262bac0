// Package config provides 12-factor configuration for the bridge
// daemon. Everything is loaded from environment variables with
// sensible defaults; CLI flags can override selected settings.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all bridge daemon configuration.
type Config struct {
	Server    ServerConfig
	Bridge    BridgeConfig
	Assets    AssetsConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// BridgeConfig holds message-plane and proxy instance configuration.
type BridgeConfig struct {
	// InvokeTimeout bounds a single native function invocation.
	InvokeTimeout time.Duration `envconfig:"BRIDGE_INVOKE_TIMEOUT" default:"30s"`
	// QueueSize bounds each transport direction's outbox.
	QueueSize int `envconfig:"BRIDGE_QUEUE_SIZE" default:"256"`
	// BaseURL is surfaced to bundles as __DOM_BASE_URL__ for asset
	// fetches.
	BaseURL string `envconfig:"DOM_BASE_URL" default:"http://localhost:8400/assets"`
}

// AssetsConfig holds bundle artifact serving configuration.
type AssetsConfig struct {
	// Dir is the directory the resolver emitted artifacts into.
	Dir string `envconfig:"ASSETS_DIR" default:"./dist"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-IP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns
// defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8400",
			Host: "0.0.0.0",
		},
		Bridge: BridgeConfig{
			InvokeTimeout: 30 * time.Second,
			QueueSize:     256,
			BaseURL:       "http://localhost:8400/assets",
		},
		Assets: AssetsConfig{
			Dir: "./dist",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate rejects configuration the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Bridge.InvokeTimeout <= 0 {
		return fmt.Errorf("invalid config: BRIDGE_INVOKE_TIMEOUT must be positive")
	}
	if c.Bridge.QueueSize <= 0 {
		return fmt.Errorf("invalid config: BRIDGE_QUEUE_SIZE must be positive")
	}
	return nil
}
