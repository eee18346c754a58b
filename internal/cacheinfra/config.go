package cacheinfra

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the settings of the shared backend.
type Config struct {
	// RedisURL is a redis:// or rediss:// connection string.
	RedisURL string

	// OperationTimeout bounds every backend call. A call that exceeds it is
	// reported as unavailable. Must be greater than 0.
	OperationTimeout time.Duration

	// LocalCacheSize enables an in-process TinyLFU tier in front of Redis
	// when greater than zero. Entries in that tier are only dropped by
	// pattern deletes issued from the same process, so LocalCacheTTL should
	// stay short.
	LocalCacheSize int

	// LocalCacheTTL is the expiry of the in-process tier.
	LocalCacheTTL time.Duration

	// ScanCount is the COUNT hint passed to SCAN during pattern deletes.
	// Default: 100
	ScanCount int64
}

// DefaultConfig returns a Config with sensible defaults for a local Redis.
func DefaultConfig() Config {
	return Config{
		RedisURL:         "redis://localhost:6379/0",
		OperationTimeout: 500 * time.Millisecond,
		LocalCacheSize:   0,
		LocalCacheTTL:    time.Minute,
		ScanCount:        100,
	}
}

// Validate checks if the configuration values are valid.
// Returns an error if any configuration parameter is invalid.
func (c Config) Validate() error {
	if c.RedisURL == "" {
		return &ConfigError{Field: "RedisURL", Message: "cannot be empty"}
	}

	if _, err := redis.ParseURL(c.RedisURL); err != nil {
		return &ConfigError{Field: "RedisURL", Message: err.Error()}
	}

	if c.OperationTimeout <= 0 {
		return &ConfigError{Field: "OperationTimeout", Message: "must be greater than 0"}
	}

	if c.LocalCacheSize < 0 {
		return &ConfigError{Field: "LocalCacheSize", Message: "must be non-negative"}
	}

	if c.LocalCacheSize > 0 && c.LocalCacheTTL <= 0 {
		return &ConfigError{Field: "LocalCacheTTL", Message: "must be greater than 0 when the local cache is enabled"}
	}

	if c.ScanCount < 0 {
		return &ConfigError{Field: "ScanCount", Message: "must be non-negative"}
	}

	return nil
}

func (c Config) scanCount() int64 {
	if c.ScanCount <= 0 {
		return 100
	}
	return c.ScanCount
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
