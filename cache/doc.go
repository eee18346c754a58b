// Package cache provides the contracts and building blocks of the search
// result cache.
//
// # Overview
//
// The package exports the pieces the search layer composes:
//
//   - Store: get, set with expiry and pattern delete over a shared backend
//   - KeyDeriver: builds deterministic keys from an entity type and named parameters
//   - Codec: converts records, including nested relations, to portable bytes
//   - Config: TTL tiers, page size limits and backend settings loaded from the environment
//
// # Keys
//
// Keys have the shape
//
//	{namespace}:{category}:{entity}:{fingerprint}
//
// The fingerprint is the xxhash64 of the canonical parameter rendering, written
// as 16 lowercase hex characters. Parameters are sorted by name, nil values are
// dropped and each pair is rendered as name=value joined with '&'. Scalar
// values carry a type tag (s:, i:, f:, b:, t:) so a boolean filter and its
// string spelling derive different keys:
//
//	deriver := cache.NewKeyDeriver("hms_fast_api")
//	key := deriver.Derive(cache.CategorySearch, "patients", map[string]any{
//		"search":    "ali",
//		"page":      1,
//		"page_size": 10,
//	})
//	// hms_fast_api:search:patients:<16 hex chars>
//
// Pattern returns the glob covering every key of an entity in one category,
// which is what invalidation deletes.
//
// # Errors
//
// Failures carry go-errors categories. KindOf maps an error to a Kind so
// callers can degrade on KindUnavailable and KindSerialization while
// propagating KindQuery and KindInvalidDescriptor.
//
// # Configuration
//
// LoadConfigFromEnv reads APP_NAME, CACHE_NAMESPACE, REDIS_URL, CACHE_ENABLED,
// SEARCH_CACHE_TTL, STATS_CACHE_TTL, CACHE_MAX_PAGE_SIZE, CACHE_DEFAULT_PAGE_SIZE,
// CACHE_OP_TIMEOUT, CACHE_LOCAL_SIZE and CACHE_INVALIDATE_STATS.
package cache
