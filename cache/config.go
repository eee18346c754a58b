package cache

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-hms-cache/internal/cacheinfra"
)

// DefaultAppName is used to derive the namespace when neither APP_NAME nor
// CACHE_NAMESPACE are set.
const DefaultAppName = "HMS FastAPI"

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	// AppName is the application name the key namespace is derived from.
	AppName string `env:"APP_NAME" envDefault:"HMS FastAPI"`
	// Namespace overrides the derived namespace when set.
	Namespace string `env:"CACHE_NAMESPACE"`
	// RedisURL is the connection string of the shared backend.
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	// Enabled turns the shared backend on. When false every call is served
	// straight from the data source.
	Enabled bool `env:"CACHE_ENABLED" envDefault:"true"`

	SearchTTLSeconds int `env:"SEARCH_CACHE_TTL" envDefault:"300"`
	StatsTTLSeconds  int `env:"STATS_CACHE_TTL" envDefault:"600"`

	MaxPageSize     int `env:"CACHE_MAX_PAGE_SIZE" envDefault:"100"`
	DefaultPageSize int `env:"CACHE_DEFAULT_PAGE_SIZE" envDefault:"50"`

	// OperationTimeout bounds every call to the backend. A call that runs
	// past it counts as the backend being unavailable.
	OperationTimeout time.Duration `env:"CACHE_OP_TIMEOUT" envDefault:"500ms"`
	// LocalCacheSize enables an in-process TinyLFU tier in front of Redis
	// when greater than zero.
	LocalCacheSize int `env:"CACHE_LOCAL_SIZE" envDefault:"0"`
	// InvalidateStats purges the stats category of a mutated entity along
	// with its search category.
	InvalidateStats bool `env:"CACHE_INVALIDATE_STATS" envDefault:"true"`
}

// DefaultConfig returns a Config populated with the defaults, ignoring the
// process environment.
func DefaultConfig() Config {
	cfg, err := LoadConfig(map[string]string{})
	if err != nil {
		// defaults are static and always parse
		panic(err)
	}
	return cfg
}

// LoadConfigFromEnv reads the configuration from the process environment.
func LoadConfigFromEnv() (Config, error) {
	return LoadConfig(nil)
}

// LoadConfig reads the configuration from environment. A nil map reads the
// process environment.
func LoadConfig(environment map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Environment: environment}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse cache configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.SearchTTLSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.StatsTTLSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxPageSize, validation.Required, validation.Min(1)),
		validation.Field(&c.DefaultPageSize, validation.Required, validation.Min(1), validation.Max(c.MaxPageSize)),
		validation.Field(&c.OperationTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.LocalCacheSize, validation.Min(0)),
		validation.Field(&c.RedisURL, validation.When(c.Enabled, validation.Required)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache configuration")
	}
	return nil
}

// SearchTTL is the expiry of search results.
func (c Config) SearchTTL() time.Duration {
	return time.Duration(c.SearchTTLSeconds) * time.Second
}

// StatsTTL is the expiry of aggregate statistics.
func (c Config) StatsTTL() time.Duration {
	return time.Duration(c.StatsTTLSeconds) * time.Second
}

// NamespaceOrDefault returns the configured namespace or one derived from
// the application name.
func (c Config) NamespaceOrDefault() string {
	if c.Namespace != "" {
		return c.Namespace
	}
	return NamespaceFromAppName(c.AppName)
}

// NamespaceFromAppName converts an application name into a key namespace,
// e.g. "HMS FastAPI" becomes "hms_fast_api".
func NamespaceFromAppName(appName string) string {
	ns := toSnake(appName)
	if ns == "" {
		return toSnake(DefaultAppName)
	}
	return ns
}

// StoreConfig converts the configuration into backend settings.
func (c Config) StoreConfig() cacheinfra.Config {
	return cacheinfra.Config{
		RedisURL:         c.RedisURL,
		OperationTimeout: c.OperationTimeout,
		LocalCacheSize:   c.LocalCacheSize,
		LocalCacheTTL:    c.SearchTTL(),
	}
}
