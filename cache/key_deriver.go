package cache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = ":"

// FingerprintLength is the number of hex characters in a key fingerprint.
const FingerprintLength = 16

// KeyDeriver turns an entity type plus named query parameters into a cache key.
// Keys have the shape {namespace}:{category}:{entity}:{fingerprint} so that every
// key for one entity and category can be matched by Pattern.
type KeyDeriver interface {
	Derive(category Category, entity string, params map[string]any) string
	Pattern(category Category, entity string) string
}

type defaultKeyDeriver struct {
	namespace string
}

// NewKeyDeriver creates a KeyDeriver scoped to namespace.
func NewKeyDeriver(namespace string) KeyDeriver {
	return &defaultKeyDeriver{namespace: namespace}
}

// Derive builds the key for params. Parameters with nil values are ignored, so
// descriptors that only differ by absent values map to the same key.
func (d *defaultKeyDeriver) Derive(category Category, entity string, params map[string]any) string {
	return d.prefix(category, entity) + KeySeparator + Fingerprint(Canonicalize(params))
}

// Pattern returns a glob matching every key Derive can produce for category and entity.
func (d *defaultKeyDeriver) Pattern(category Category, entity string) string {
	return d.prefix(category, entity) + KeySeparator + "*"
}

func (d *defaultKeyDeriver) prefix(category Category, entity string) string {
	return strings.Join([]string{d.namespace, category.String(), entity}, KeySeparator)
}

// Fingerprint hashes the canonical form into a fixed width hex string.
func Fingerprint(canonical string) string {
	return fmt.Sprintf("%0*x", FingerprintLength, xxhash.Sum64String(canonical))
}

// Canonicalize renders params as name=value pairs sorted by name and joined by '&'.
// Names and values are query-escaped so that separators inside values cannot
// produce the same rendering as a different parameter set.
func Canonicalize(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}

	names := make([]string, 0, len(params))
	rendered := make(map[string]string, len(params))
	for name, value := range params {
		s, ok := renderValue(value)
		if !ok {
			continue
		}
		names = append(names, name)
		rendered[name] = s
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = url.QueryEscape(name) + "=" + url.QueryEscape(rendered[name])
	}
	return strings.Join(pairs, "&")
}

// renderValue returns the string form of v and false when v is absent.
func renderValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}

	if t, ok := v.(time.Time); ok {
		return "t:" + t.UTC().Format(time.RFC3339Nano), true
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "", false
		}
		return renderValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "", false
		}
		return renderSequence(rv), true
	case reflect.Array:
		return renderSequence(rv), true
	case reflect.Map:
		if rv.IsNil() {
			return "", false
		}
		return renderMap(rv), true
	}

	if tag := scalarTag(rt.Kind()); tag != "" {
		return tag + fmt.Sprintf("%v", v), true
	}

	return jsonFallback(v), true
}

func renderSequence(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s, ok := renderValue(rv.Index(i).Interface())
		if !ok {
			s = "nil"
		}
		parts[i] = s
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func renderMap(rv reflect.Value) string {
	entries := make(map[string]string, rv.Len())
	keys := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, _ := renderValue(iter.Key().Interface())
		v, ok := renderValue(iter.Value().Interface())
		if !ok {
			continue
		}
		entries[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + entries[k]
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// scalarTag prefixes rendered scalars with their type so that true, 1 and 1.5
// never collide with the strings "true", "1" and "1.5".
func scalarTag(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "b:"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "i:"
	case reflect.Float32, reflect.Float64:
		return "f:"
	case reflect.String:
		return "s:"
	default:
		return ""
	}
}

// jsonFallback renders structs and other composite values. Values that cannot be
// marshaled fall back to their type name, which keeps key derivation total.
func jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + reflect.TypeOf(v).String()
	}
	return string(data)
}
