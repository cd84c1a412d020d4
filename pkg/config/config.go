// Package config loads the YAML configuration that drives queue
// construction: pool size, default expire policy, sweep interval,
// logging, and which optional store/sink adapters are active.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete queue configuration.
type Config struct {
	Pool    PoolConfig    `yaml:"pool" json:"pool"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Notify  NotifyConfig  `yaml:"notify" json:"notify"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PoolConfig controls the worker pool and the default job retention
// policy applied when a submitted job doesn't specify one.
type PoolConfig struct {
	Size              int           `yaml:"size" json:"size"`
	SweepInterval     time.Duration `yaml:"sweepInterval" json:"sweepInterval"`
	DefaultExpireKind string        `yaml:"defaultExpireKind" json:"defaultExpireKind"` // "never", "onResultFetch", "timeout"
	DefaultExpireDur  time.Duration `yaml:"defaultExpireDuration" json:"defaultExpireDuration"`
}

// StoreConfig selects and configures the job store backend.
type StoreConfig struct {
	Backend  string          `yaml:"backend" json:"backend"` // "memory" or "dynamodb"
	DynamoDB *DynamoDBConfig `yaml:"dynamodb" json:"dynamodb"`
}

// DynamoDBConfig configures the optional DynamoDB-backed store adapter.
type DynamoDBConfig struct {
	Region     string `yaml:"region" json:"region"`
	TableName  string `yaml:"tableName" json:"tableName"`
	TTLAttr    string `yaml:"ttlAttribute" json:"ttlAttribute"`
	TTLEnabled bool   `yaml:"ttlEnabled" json:"ttlEnabled"`
}

// NotifyConfig selects and configures optional notification sink
// adapters layered in front of, or instead of, the caller's sink.
type NotifyConfig struct {
	CloudWatch *CloudWatchConfig `yaml:"cloudwatch" json:"cloudwatch"`
}

// CloudWatchConfig configures the optional CloudWatch Logs sink.
type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Region          string `yaml:"region" json:"region"`
	LogGroupName    string `yaml:"logGroupName" json:"logGroupName"`
	LogStreamPrefix string `yaml:"logStreamPrefix" json:"logStreamPrefix"`
}

// LoggingConfig controls the ambient internal logger (pkg/logger),
// independent of the caller's notification sink.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the built-in configuration used when no file is
// found and no overrides are supplied.
func Default() Config {
	return Config{
		Pool: PoolConfig{
			Size:              4,
			SweepInterval:     time.Second,
			DefaultExpireKind: "never",
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// Load reads and parses the YAML file at path, applying it on top of
// Default(). An empty path, or a path that doesn't exist, yields the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for internally consistent values.
// It does not validate that a configured backend is reachable; that
// happens when the backend adapter is constructed.
func (c *Config) Validate() error {
	if c.Pool.Size < 1 {
		return fmt.Errorf("pool size must be >= 1, got %d", c.Pool.Size)
	}
	if c.Pool.SweepInterval < 0 {
		return fmt.Errorf("sweep interval must be non-negative")
	}
	switch c.Pool.DefaultExpireKind {
	case "", "never", "onResultFetch", "timeout":
	default:
		return fmt.Errorf("unknown default expire kind: %s", c.Pool.DefaultExpireKind)
	}
	switch c.Store.Backend {
	case "", "memory", "dynamodb":
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
	if c.Store.Backend == "dynamodb" && (c.Store.DynamoDB == nil || c.Store.DynamoDB.TableName == "") {
		return fmt.Errorf("dynamodb backend requires store.dynamodb.tableName")
	}
	return nil
}
