package cache

import (
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-hms-cache/internal/cacheinfra"
)

// Error categories used across the cache and search layers.
var (
	// ErrCategoryUnavailable marks connectivity failures or timeouts talking to the backend.
	ErrCategoryUnavailable = cacheinfra.ErrCategoryUnavailable
	// ErrCategorySerialization marks payloads that could not be encoded or decoded.
	ErrCategorySerialization = goerrors.CategoryInternal.Extend("serialization")
	// ErrCategoryQuery marks failures reported by the data source.
	ErrCategoryQuery = goerrors.CategoryExternal.Extend("query")
	// ErrCategoryInvalidDescriptor marks descriptors that cannot be served.
	ErrCategoryInvalidDescriptor = goerrors.CategoryValidation
)

// Kind is the coarse classification callers switch on.
type Kind int

const (
	KindNone Kind = iota
	KindUnavailable
	KindSerialization
	KindQuery
	KindInvalidDescriptor
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnavailable:
		return "unavailable"
	case KindSerialization:
		return "serialization"
	case KindQuery:
		return "query"
	case KindInvalidDescriptor:
		return "invalid_descriptor"
	default:
		return "unknown"
	}
}

// KindOf classifies err by walking its category chain.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case goerrors.HasCategory(err, ErrCategoryUnavailable):
		return KindUnavailable
	case goerrors.HasCategory(err, ErrCategorySerialization):
		return KindSerialization
	case goerrors.HasCategory(err, ErrCategoryQuery):
		return KindQuery
	case goerrors.HasCategory(err, ErrCategoryInvalidDescriptor):
		return KindInvalidDescriptor
	default:
		return KindUnknown
	}
}

// Unavailable wraps a backend failure.
func Unavailable(err error, message string) error {
	return cacheinfra.Unavailable(err, message)
}

// Serialization wraps an encode or decode failure.
func Serialization(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, ErrCategorySerialization, message).
		WithTextCode("CACHE_SERIALIZATION")
}

// QueryFailed wraps a data source failure.
func QueryFailed(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, ErrCategoryQuery, message).
		WithTextCode("QUERY_FAILED")
}

// InvalidDescriptor builds a validation error for a descriptor that cannot be served.
func InvalidDescriptor(message string, fields ...goerrors.FieldError) error {
	return goerrors.NewValidation(message, fields...).
		WithTextCode("INVALID_DESCRIPTOR")
}
