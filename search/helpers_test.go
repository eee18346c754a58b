package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-hms-cache/cache"
	"github.com/goliatone/go-hms-cache/internal/cacheinfra"
)

// fakeSource serves records from memory and counts calls.
type fakeSource struct {
	mu       sync.Mutex
	records  map[string][]cache.Record
	queries  int
	counts   int
	lastSeen Query
	err      error
}

func newFakeSource() *fakeSource {
	return &fakeSource{records: make(map[string][]cache.Record)}
}

func (s *fakeSource) add(entity string, records ...cache.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[entity] = append(s.records[entity], records...)
}

func (s *fakeSource) Query(_ context.Context, q Query) ([]cache.Record, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries++
	s.lastSeen = q
	if s.err != nil {
		return nil, 0, s.err
	}

	var matched []cache.Record
	for _, record := range s.records[q.Entity.Name] {
		if matchesFilters(record, q.Filters) && matchesSearch(record, q.SearchTerm, q.SearchFields) {
			matched = append(matched, copyRecord(record))
		}
	}

	total := int64(len(matched))
	start := min(q.Offset(), len(matched))
	end := min(start+q.Limit(), len(matched))
	return matched[start:end], total, nil
}

func (s *fakeSource) CountBy(_ context.Context, entity Entity, field string) (map[string]int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts++
	if s.err != nil {
		return nil, 0, s.err
	}

	groups := make(map[string]int64)
	records := s.records[entity.Name]
	if field != "" {
		for _, record := range records {
			groups[fmt.Sprint(record[field])]++
		}
	}
	return groups, int64(len(records)), nil
}

func (s *fakeSource) calls() (queries, counts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries, s.counts
}

func matchesFilters(record cache.Record, filters map[string]any) bool {
	for field, want := range filters {
		if fmt.Sprint(record[field]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func matchesSearch(record cache.Record, term string, fields []string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	for _, field := range fields {
		if s, ok := record[field].(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func copyRecord(record cache.Record) cache.Record {
	out := make(cache.Record, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out
}

// failingStore reports every call as the backend being unreachable.
type failingStore struct{}

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, cache.Unavailable(errConnRefused, "redis get failed")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return cache.Unavailable(errConnRefused, "redis set failed")
}

func (failingStore) DeleteMatching(context.Context, string) error {
	return cache.Unavailable(errConnRefused, "redis delete failed")
}

func (failingStore) Ping(context.Context) error {
	return cache.Unavailable(errConnRefused, "redis ping failed")
}

func (failingStore) Close() error { return nil }

// recordingStore remembers the patterns it was asked to delete.
type recordingStore struct {
	*cacheinfra.MemoryStore

	mu       sync.Mutex
	patterns []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: cacheinfra.NewMemoryStore()}
}

func (s *recordingStore) DeleteMatching(ctx context.Context, pattern string) error {
	s.mu.Lock()
	s.patterns = append(s.patterns, pattern)
	s.mu.Unlock()
	return s.MemoryStore.DeleteMatching(ctx, pattern)
}

func (s *recordingStore) deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.patterns...)
}

func testConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Namespace = "hms"
	return cfg
}

func observedLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func patientRecords(n int) []cache.Record {
	out := make([]cache.Record, 0, n)
	genders := []string{"female", "male"}
	for i := 1; i <= n; i++ {
		out = append(out, cache.Record{
			"id":         i,
			"first_name": fmt.Sprintf("Patient%02d", i),
			"last_name":  "Doe",
			"email":      fmt.Sprintf("patient%02d@example.com", i),
			"gender":     genders[i%2],
			"is_active":  true,
			"created_at": time.Date(2024, 1, i%28+1, 9, 0, 0, 0, time.UTC),
		})
	}
	return out
}
