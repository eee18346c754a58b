package cache

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Record is a plain structured row. Related sub-records are nested under the
// relation name.
type Record = map[string]any

// Page is the cached form of one page of search results.
type Page struct {
	Records    []Record
	TotalCount int64
	Page       int
	PageSize   int
}

// Codec converts records to and from bytes that can be shared between
// processes. Decoded values are plain data: strings, int64, float64, bool,
// nil, []any and map[string]any.
type Codec interface {
	Encode(records []Record, relations []string) ([]byte, error)
	Decode(data []byte) ([]Record, error)
	EncodePage(page Page) ([]byte, error)
	DecodePage(data []byte) (Page, error)
	EncodeValue(v any) ([]byte, error)
	DecodeValue(data []byte, dest any) error
}

type msgpackCodec struct{}

// NewCodec returns the default msgpack codec.
func NewCodec() Codec {
	return msgpackCodec{}
}

// Encode normalizes records and serializes them. Every relation in relations
// is present in the output, set to nil when the record lacks it.
func (c msgpackCodec) Encode(records []Record, relations []string) ([]byte, error) {
	normalized, err := Normalize(records, relations)
	if err != nil {
		return nil, err
	}
	return c.EncodeValue(normalized)
}

func (c msgpackCodec) Decode(data []byte) ([]Record, error) {
	var records []Record
	if err := c.DecodeValue(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// pageEnvelope is the wire form of a Page. Records holds the output of Encode
// so cached pages and bare record payloads share one format.
type pageEnvelope struct {
	Records    msgpack.RawMessage `msgpack:"records"`
	TotalCount int64              `msgpack:"total_count"`
	Page       int                `msgpack:"page"`
	PageSize   int                `msgpack:"page_size"`
}

// EncodePage serializes a page, encoding its records with Encode.
func (c msgpackCodec) EncodePage(page Page) ([]byte, error) {
	records, err := c.Encode(page.Records, nil)
	if err != nil {
		return nil, err
	}
	return c.EncodeValue(pageEnvelope{
		Records:    records,
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PageSize:   page.PageSize,
	})
}

// DecodePage reverses EncodePage, decoding its records with Decode.
func (c msgpackCodec) DecodePage(data []byte) (Page, error) {
	var env pageEnvelope
	if err := c.DecodeValue(data, &env); err != nil {
		return Page{}, err
	}
	records, err := c.Decode(env.Records)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Records:    records,
		TotalCount: env.TotalCount,
		Page:       env.Page,
		PageSize:   env.PageSize,
	}, nil
}

// EncodeValue serializes v with map keys sorted.
func (msgpackCodec) EncodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, Serialization(err, "failed to encode cache payload")
	}
	return buf.Bytes(), nil
}

// DecodeValue deserializes data into dest. Integers inside interface values
// decode as int64 and floats as float64.
func (msgpackCodec) DecodeValue(data []byte, dest any) error {
	if len(data) == 0 {
		return Serialization(fmt.Errorf("empty payload"), "failed to decode cache payload")
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(dest); err != nil {
		return Serialization(err, "failed to decode cache payload")
	}
	return nil
}

// Normalize converts records into the value set the codec decodes to, so a
// fresh result and a cached one compare equal. Temporal values become
// RFC 3339 strings in UTC.
func Normalize(records []Record, relations []string) ([]Record, error) {
	if records == nil {
		return []Record{}, nil
	}

	out := make([]Record, len(records))
	for i, record := range records {
		normalized := make(Record, len(record)+len(relations))
		for field, value := range record {
			v, err := normalizeValue(value)
			if err != nil {
				return nil, Serialization(err, fmt.Sprintf("field %q of record %d", field, i))
			}
			normalized[field] = v
		}
		for _, relation := range relations {
			if _, ok := normalized[relation]; !ok {
				normalized[relation] = nil
			}
		}
		out[i] = normalized
	}
	return out, nil
}

func normalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case bool:
		return v, nil
	case int64:
		return v, nil
	case float64:
		return v, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	case []byte:
		if v == nil {
			return nil, nil
		}
		return string(v), nil
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil, nil
		}
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		items := make([]any, rv.Len())
		for i := range items {
			item, err := normalizeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return items, nil
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			item, err := normalizeValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			m[fmt.Sprint(iter.Key().Interface())] = item
		}
		return m, nil
	}

	if s, ok := value.(fmt.Stringer); ok {
		return s.String(), nil
	}

	return nil, fmt.Errorf("unsupported value of type %T", value)
}
