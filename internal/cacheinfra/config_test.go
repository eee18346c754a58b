package cacheinfra

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("expected RedisURL to be redis://localhost:6379/0, got %s", cfg.RedisURL)
	}

	if cfg.OperationTimeout != 500*time.Millisecond {
		t.Errorf("expected OperationTimeout to be 500ms, got %v", cfg.OperationTimeout)
	}

	if cfg.LocalCacheSize != 0 {
		t.Errorf("expected LocalCacheSize to be 0, got %d", cfg.LocalCacheSize)
	}

	if cfg.ScanCount != 100 {
		t.Errorf("expected ScanCount to be 100, got %d", cfg.ScanCount)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "valid default config",
			mutate: func(*Config) {},
		},
		{
			name:      "empty url",
			mutate:    func(c *Config) { c.RedisURL = "" },
			wantField: "RedisURL",
		},
		{
			name:      "unsupported scheme",
			mutate:    func(c *Config) { c.RedisURL = "http://localhost:6379" },
			wantField: "RedisURL",
		},
		{
			name:      "zero timeout",
			mutate:    func(c *Config) { c.OperationTimeout = 0 },
			wantField: "OperationTimeout",
		},
		{
			name:      "negative local size",
			mutate:    func(c *Config) { c.LocalCacheSize = -1 },
			wantField: "LocalCacheSize",
		},
		{
			name: "local cache without ttl",
			mutate: func(c *Config) {
				c.LocalCacheSize = 100
				c.LocalCacheTTL = 0
			},
			wantField: "LocalCacheTTL",
		},
		{
			name:      "negative scan count",
			mutate:    func(c *Config) { c.ScanCount = -1 },
			wantField: "ScanCount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			configErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			if configErr.Field != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, configErr.Field)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "OperationTimeout", Message: "must be greater than 0"}

	want := "config error in field OperationTimeout: must be greater than 0"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	if !strings.Contains(err.Error(), "OperationTimeout") {
		t.Error("expected error message to name the field")
	}
}
