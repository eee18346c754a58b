package cacheinfra

import (
	"context"
	"errors"
	"time"
)

// ErrDisabled is reported by NopStore.Ping.
var ErrDisabled = errors.New("cache disabled")

// NopStore is used when caching is turned off or the backend could not be
// reached at startup. Every read misses and every write is dropped.
type NopStore struct{}

// NewNopStore returns a store that never holds data.
func NewNopStore() NopStore {
	return NopStore{}
}

func (NopStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NopStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NopStore) DeleteMatching(context.Context, string) error {
	return nil
}

// Ping always fails so operators can tell a disabled cache from a healthy one.
func (NopStore) Ping(context.Context) error {
	return Unavailable(ErrDisabled, "cache store is disabled")
}

func (NopStore) Close() error {
	return nil
}
