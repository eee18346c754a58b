package search

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-hms-cache/cache"
)

// Wildcard is the filter value meaning "do not filter on this field".
const Wildcard = "all"

// Limits bounds page sizes.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// LimitsFromConfig reads page size limits from cfg.
func LimitsFromConfig(cfg cache.Config) Limits {
	return Limits{DefaultPageSize: cfg.DefaultPageSize, MaxPageSize: cfg.MaxPageSize}
}

// QueryDescriptor is a listing request as received from a caller.
type QueryDescriptor struct {
	Entity     string
	SearchTerm string
	// SearchFields overrides the entity's default search fields when not empty.
	SearchFields []string
	// Filters are equality matches. Nil values and Wildcard are ignored.
	Filters          map[string]any
	Page             int
	PageSize         int
	OrderBy          string
	IncludeRelations []string
}

// Query is a validated descriptor with clamped paging and resolved defaults.
// It is what the data source executes and what the cache key is derived from.
type Query struct {
	Entity           Entity
	SearchTerm       string
	SearchFields     []string
	Filters          map[string]any
	OrderBy          string
	IncludeRelations []string
	Page             int
	PageSize         int
}

// Offset is the number of rows skipped before the page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Limit is the maximum number of rows in the page.
func (q Query) Limit() int {
	return q.PageSize
}

// Order is the field results are sorted by, descending.
func (q Query) Order() string {
	if q.OrderBy != "" {
		return q.OrderBy
	}
	return q.Entity.DefaultOrder()
}

// KeyParams are the named parameters the cache key is derived from.
func (q Query) KeyParams() map[string]any {
	params := make(map[string]any, len(q.Filters)+6)
	for field, value := range q.Filters {
		params[field] = value
	}

	params["page"] = q.Page
	params["page_size"] = q.PageSize
	if q.OrderBy != "" {
		params["order_by"] = q.OrderBy
	}
	if q.SearchTerm != "" {
		params["search"] = q.SearchTerm
		params["search_fields"] = q.SearchFields
	}
	if len(q.IncludeRelations) > 0 {
		params["include"] = q.IncludeRelations
	}
	return params
}

// Normalize validates d against schema and clamps its paging. Unknown
// entities, fields, orderings and relations are rejected.
func (d QueryDescriptor) Normalize(schema *Schema, limits Limits) (Query, error) {
	entity, ok := schema.Entity(d.Entity)
	if !ok {
		return Query{}, cache.InvalidDescriptor("unknown entity type",
			goerrors.FieldError{Field: "entity", Message: "not registered", Value: d.Entity})
	}

	q := Query{
		Entity:     entity,
		SearchTerm: strings.TrimSpace(d.SearchTerm),
		Page:       clampPage(d.Page),
		PageSize:   clampPageSize(d.PageSize, limits),
	}

	var fields []goerrors.FieldError

	if q.SearchTerm != "" {
		searchFields := d.SearchFields
		if len(searchFields) == 0 {
			searchFields = entity.SearchFields
		}
		for _, field := range searchFields {
			if err := schema.checkSearchField(entity, field); err != nil {
				fields = append(fields, *err)
			}
		}
		q.SearchFields = sortedUnique(searchFields)
		if len(q.SearchFields) == 0 {
			q.SearchTerm = ""
		}
	}

	filters, filterErrs := normalizeFilters(entity, d.Filters)
	q.Filters = filters
	fields = append(fields, filterErrs...)

	if d.OrderBy != "" {
		if !entity.CanOrder(d.OrderBy) {
			fields = append(fields, goerrors.FieldError{Field: "order_by", Message: "not orderable", Value: d.OrderBy})
		}
		q.OrderBy = d.OrderBy
	}

	for _, name := range d.IncludeRelations {
		if _, ok := entity.Relation(name); !ok {
			fields = append(fields, goerrors.FieldError{Field: "include_relations", Message: "unknown relation", Value: name})
		}
	}
	q.IncludeRelations = sortedUnique(d.IncludeRelations)

	if len(fields) > 0 {
		return Query{}, cache.InvalidDescriptor(fmt.Sprintf("invalid query for %s", entity.Name), fields...)
	}
	return q, nil
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func clampPageSize(size int, limits Limits) int {
	if size < 1 {
		size = limits.DefaultPageSize
	}
	if limits.MaxPageSize > 0 && size > limits.MaxPageSize {
		size = limits.MaxPageSize
	}
	if size < 1 {
		size = 1
	}
	return size
}

func normalizeFilters(entity Entity, filters map[string]any) (map[string]any, []goerrors.FieldError) {
	out := make(map[string]any, len(filters))
	var errs []goerrors.FieldError

	for field, raw := range filters {
		value, present := scalar(raw)
		if !present {
			continue
		}
		if s, ok := value.(string); ok && s == Wildcard {
			continue
		}
		if !entity.CanFilter(field) {
			errs = append(errs, goerrors.FieldError{Field: "filters." + field, Message: "not filterable"})
			continue
		}
		if value == nil {
			errs = append(errs, goerrors.FieldError{Field: "filters." + field, Message: "must be a scalar", Value: fmt.Sprintf("%T", raw)})
			continue
		}
		out[field] = value
	}

	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return out, errs
}

// scalar dereferences v and reports whether it is present. A present value
// that is not a string, bool or number is returned as nil.
func scalar(v any) (any, bool) {
	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return nil, true
	}
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	sort.Strings(out)
	return slices.Compact(out)
}
