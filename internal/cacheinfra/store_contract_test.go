package cacheinfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-hms-cache/cache"
	"github.com/goliatone/go-hms-cache/internal/cacheinfra"
)

var (
	_ cache.Store = (*cacheinfra.RedisStore)(nil)
	_ cache.Store = (*cacheinfra.MemoryStore)(nil)
	_ cache.Store = cacheinfra.NopStore{}
)

func TestStoreContract(t *testing.T) {
	factories := map[string]func(t *testing.T) cache.Store{
		"redis": func(t *testing.T) cache.Store {
			server := miniredis.RunT(t)
			cfg := cacheinfra.DefaultConfig()
			cfg.RedisURL = "redis://" + server.Addr()
			store, err := cacheinfra.NewRedisStore(cfg)
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
		"memory": func(t *testing.T) cache.Store {
			return cacheinfra.NewMemoryStore()
		},
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			deriver := cache.NewKeyDeriver("hms")

			patients := deriver.Derive(cache.CategorySearch, "patients", map[string]any{"page": 1})
			bills := deriver.Derive(cache.CategorySearch, "bills", map[string]any{"page": 1})

			require.NoError(t, store.Ping(ctx))
			require.NoError(t, store.Set(ctx, patients, []byte("a"), time.Minute))
			require.NoError(t, store.Set(ctx, bills, []byte("b"), time.Minute))

			got, found, err := store.Get(ctx, patients)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte("a"), got)

			require.NoError(t, store.DeleteMatching(ctx, deriver.Pattern(cache.CategorySearch, "patients")))

			_, found, err = store.Get(ctx, patients)
			require.NoError(t, err)
			assert.False(t, found)

			_, found, err = store.Get(ctx, bills)
			require.NoError(t, err)
			assert.True(t, found)

			require.NoError(t, store.DeleteMatching(ctx, deriver.Pattern(cache.CategorySearch, "patients")))
		})
	}
}
