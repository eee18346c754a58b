package cache

import (
	"context"
	"time"

	"github.com/goliatone/go-hms-cache/internal/cacheinfra"
)

// Store is the contract the search layer expects from a shared key-value backend.
// Implementations never hold process-local state beyond a connection handle, and every
// failure to reach the backend is reported with CategoryUnavailable so callers can degrade
// to a miss or a no-op instead of failing the request.
type Store interface {
	// Get returns the payload stored under key. found is false on a miss.
	Get(ctx context.Context, key string) (payload []byte, found bool, err error)
	// Set stores payload under key with the given expiry.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// DeleteMatching removes every key matching a glob pattern. Deleting
	// keys that are already gone is not an error.
	DeleteMatching(ctx context.Context, pattern string) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Category groups cache keys by the kind of result they hold. Each category
// has its own TTL tier.
type Category string

const (
	// CategorySearch holds paginated search and listing results.
	CategorySearch Category = "search"
	// CategoryStats holds aggregate statistics per entity type.
	CategoryStats Category = "stats"
)

func (c Category) String() string { return string(c) }

// TTL returns the expiry configured for the category.
func (c Config) TTL(category Category) time.Duration {
	switch category {
	case CategoryStats:
		return c.StatsTTL()
	default:
		return c.SearchTTL()
	}
}

// NewStore builds the store described by cfg: the Redis backend when enabled,
// otherwise a store that always misses.
func NewStore(cfg Config) (Store, error) {
	if !cfg.Enabled {
		return cacheinfra.NewNopStore(), nil
	}

	store, err := cacheinfra.NewRedisStore(cfg.StoreConfig())
	if err != nil {
		return nil, err
	}
	return store, nil
}
