package cacheinfra

import (
	"context"
	"errors"
	"time"

	rediscache "github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// minRedisTTL is the smallest expiry forwarded to Redis. Shorter values are
// rounded up since the cache client replaces sub-second TTLs with its own default.
const minRedisTTL = time.Second

// RedisStore is a Store backed by Redis, with an optional in-process tier.
type RedisStore struct {
	client  *redis.Client
	cache   *rediscache.Cache
	timeout time.Duration
	count   int64
}

// NewRedisStore validates cfg and connects a Redis client. The connection is
// lazy, use Ping to check reachability.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, &ConfigError{Field: "RedisURL", Message: err.Error()}
	}
	opts.DialTimeout = cfg.OperationTimeout
	opts.ReadTimeout = cfg.OperationTimeout
	opts.WriteTimeout = cfg.OperationTimeout

	return NewRedisStoreWithClient(redis.NewClient(opts), cfg), nil
}

// NewRedisStoreWithClient wraps an existing client. The store takes ownership
// of the client and closes it on Close.
func NewRedisStoreWithClient(client *redis.Client, cfg Config) *RedisStore {
	opts := &rediscache.Options{Redis: client}
	if cfg.LocalCacheSize > 0 {
		opts.LocalCache = rediscache.NewTinyLFU(cfg.LocalCacheSize, cfg.LocalCacheTTL)
	}

	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().OperationTimeout
	}

	return &RedisStore{
		client:  client,
		cache:   rediscache.New(opts),
		timeout: timeout,
		count:   cfg.scanCount(),
	}
}

// Get returns the payload stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payload []byte
	if err := s.cache.Get(ctx, key, &payload); err != nil {
		if errors.Is(err, rediscache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, Unavailable(err, "redis get failed")
	}
	return payload, true, nil
}

// Set stores payload under key and overwrites any previous value.
func (s *RedisStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if ttl < minRedisTTL {
		ttl = minRedisTTL
	}

	err := s.cache.Set(&rediscache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: payload,
		TTL:   ttl,
	})
	if err != nil {
		return Unavailable(err, "redis set failed")
	}
	return nil
}

// DeleteMatching scans for keys matching pattern and deletes them page by page.
// Every SCAN and DEL gets its own OperationTimeout so a large keyspace is
// purged completely. Keys removed concurrently by expiry or another process
// are ignored.
func (s *RedisStore) DeleteMatching(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := s.scanPage(ctx, cursor, pattern)
		if err != nil {
			return Unavailable(err, "redis scan failed")
		}

		if len(keys) > 0 {
			for _, key := range keys {
				s.cache.DeleteFromLocalCache(key)
			}
			if err := s.deleteKeys(ctx, keys); err != nil {
				return Unavailable(err, "redis delete failed")
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore) scanPage(ctx context.Context, cursor uint64, pattern string) ([]string, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Scan(ctx, cursor, pattern, s.count).Result()
}

func (s *RedisStore) deleteKeys(ctx context.Context, keys []string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Del(ctx, keys...).Err()
}

// Ping reports whether Redis answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return Unavailable(err, "redis ping failed")
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
