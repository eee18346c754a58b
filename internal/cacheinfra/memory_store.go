package cacheinfra

import (
	"context"
	"path"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore keeps entries in process memory with per-entry expiry. It is
// meant for tests and single-process deployments. Expired entries are
// dropped lazily on access and during pattern deletes.
type MemoryStore struct {
	entries *xsync.MapOf[string, memoryEntry]
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates a store that reads time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: xsync.NewMapOf[string, memoryEntry](),
		now:     now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, Unavailable(err, "memory get cancelled")
	}

	entry, ok := s.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(entry.expiresAt) {
		s.entries.Delete(key)
		return nil, false, nil
	}

	out := make([]byte, len(entry.payload))
	copy(out, entry.payload)
	return out, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return Unavailable(err, "memory set cancelled")
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)
	s.entries.Store(key, memoryEntry{
		payload:   stored,
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

// DeleteMatching removes keys matching a glob pattern. The pattern syntax is
// the one of path.Match, which agrees with Redis globs for keys without '/'.
func (s *MemoryStore) DeleteMatching(ctx context.Context, pattern string) error {
	if err := ctx.Err(); err != nil {
		return Unavailable(err, "memory delete cancelled")
	}

	if _, err := path.Match(pattern, ""); err != nil {
		return &ConfigError{Field: "pattern", Message: err.Error()}
	}

	now := s.now()
	s.entries.Range(func(key string, entry memoryEntry) bool {
		if matched, _ := path.Match(pattern, key); matched || !now.Before(entry.expiresAt) {
			s.entries.Delete(key)
		}
		return true
	})
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Unavailable(err, "memory ping cancelled")
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.entries.Clear()
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	now := s.now()
	n := 0
	s.entries.Range(func(_ string, entry memoryEntry) bool {
		if now.Before(entry.expiresAt) {
			n++
		}
		return true
	})
	return n
}

// Keys returns the live keys in no particular order.
func (s *MemoryStore) Keys() []string {
	now := s.now()
	var keys []string
	s.entries.Range(func(key string, entry memoryEntry) bool {
		if now.Before(entry.expiresAt) {
			keys = append(keys, key)
		}
		return true
	})
	return keys
}
