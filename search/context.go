package search

import (
	"context"
)

type bypassContextKey struct{}

type invalidationsContextKey struct{}

// WithCacheBypass makes searches on ctx skip the cache read. The fresh result
// still refills the entry.
func WithCacheBypass(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bypassContextKey{}, true)
}

func bypassFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	bypass, _ := ctx.Value(bypassContextKey{}).(bool)
	return bypass
}

// WithAdditionalInvalidations attaches entity types that writes on ctx purge
// on top of the written entity, for mutations that touch more than one table.
func WithAdditionalInvalidations(ctx context.Context, entities ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(entities) == 0 {
		return ctx
	}

	existing := invalidationsFromContext(ctx)
	combined := dedupeStrings(append(existing, entities...))
	if len(combined) == 0 {
		return ctx
	}

	return context.WithValue(ctx, invalidationsContextKey{}, combined)
}

func invalidationsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if entities, ok := ctx.Value(invalidationsContextKey{}).([]string); ok {
		return append([]string(nil), entities...)
	}
	return nil
}

// dedupeStrings drops empty and repeated values and keeps first-seen order.
func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
