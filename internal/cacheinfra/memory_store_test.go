package cacheinfra

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_SetGetExpire(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), 10*time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	payload, found, err := store.Get(ctx, "k")
	if err != nil || !found || string(payload) != "v" {
		t.Fatalf("expected hit, got payload=%q found=%v err=%v", payload, found, err)
	}

	clock.Advance(10 * time.Second)
	if _, found, _ := store.Get(ctx, "k"); found {
		t.Error("expected entry to expire at its deadline")
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d entries", store.Len())
	}
}

func TestMemoryStore_PayloadIsCopied(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	payload := []byte("abc")

	if err := store.Set(ctx, "k", payload, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	payload[0] = 'x'

	got, _, _ := store.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("expected stored payload to be isolated, got %q", got)
	}
}

func TestMemoryStore_DeleteMatching(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{
		"hms:search:patients:01",
		"hms:search:patients:02",
		"hms:search:lab_tests:01",
		"hms:stats:patients:01",
	} {
		if err := store.Set(ctx, key, []byte("p"), time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	}

	if err := store.DeleteMatching(ctx, "hms:search:patients:*"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	keys := store.Keys()
	sort.Strings(keys)
	want := []string{"hms:search:lab_tests:01", "hms:stats:patients:01"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("expected %v, got %v", want, keys)
		}
	}
}

func TestMemoryStore_BadPattern(t *testing.T) {
	store := NewMemoryStore()

	err := store.DeleteMatching(context.Background(), "hms:[")
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected *ConfigError, got %T (%v)", err, err)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := store.Get(ctx, "k"); !goerrors.HasCategory(err, ErrCategoryUnavailable) {
		t.Errorf("expected unavailable error, got %v", err)
	}
	if err := store.Set(ctx, "k", nil, time.Minute); !goerrors.HasCategory(err, ErrCategoryUnavailable) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := "hms:search:patients:" + string(rune('a'+i))
				_ = store.Set(ctx, key, []byte{byte(j)}, time.Minute)
				_, _, _ = store.Get(ctx, key)
				if j%10 == 0 {
					_ = store.DeleteMatching(ctx, "hms:search:patients:*")
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestNopStore(t *testing.T) {
	store := NewNopStore()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Errorf("expected set to be dropped silently, got %v", err)
	}
	if _, found, err := store.Get(ctx, "k"); found || err != nil {
		t.Errorf("expected silent miss, got found=%v err=%v", found, err)
	}
	if err := store.DeleteMatching(ctx, "*"); err != nil {
		t.Errorf("expected delete to succeed, got %v", err)
	}
	if err := store.Ping(ctx); !goerrors.HasCategory(err, ErrCategoryUnavailable) {
		t.Errorf("expected ping to report disabled store, got %v", err)
	}
}
