package cacheinfra

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrCategoryUnavailable marks connectivity failures or timeouts talking to the backend.
var ErrCategoryUnavailable = goerrors.CategoryExternal.Extend("cache_unavailable")

// Unavailable wraps a backend failure.
func Unavailable(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, ErrCategoryUnavailable, message).
		WithSeverity(goerrors.SeverityWarning).
		WithTextCode("CACHE_UNAVAILABLE")
}
