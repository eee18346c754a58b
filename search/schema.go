package search

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// reservedParams are key parameter names a filter field may not shadow.
var reservedParams = []string{"search", "search_fields", "page", "page_size", "order_by", "include", "group_by"}

// Relation is a to-one link from an entity to another entity through a
// foreign key column on the owning table.
type Relation struct {
	Entity     string
	ForeignKey string
}

// Entity describes what may be queried on one entity type. Anything not
// listed is rejected when a descriptor is normalized.
type Entity struct {
	Name     string
	Table    string
	Identity string
	// Recency orders results when no order is requested. Empty falls back to Identity.
	Recency string
	// StatusField groups aggregate statistics. Empty reports totals only.
	StatusField string

	Columns []string
	// Hidden columns are never returned, including when the entity is loaded as a relation.
	Hidden []string
	// SearchFields are matched when a descriptor does not name its own. Dotted
	// names reach one level into a relation, e.g. "patient.last_name".
	SearchFields []string
	FilterFields []string
	OrderFields  []string
	Relations    map[string]Relation
}

// DefaultOrder is the field results are ordered by when none is requested.
func (e Entity) DefaultOrder() string {
	if e.Recency != "" {
		return e.Recency
	}
	return e.Identity
}

func (e Entity) HasColumn(name string) bool { return slices.Contains(e.Columns, name) }

func (e Entity) CanFilter(field string) bool { return slices.Contains(e.FilterFields, field) }

func (e Entity) CanOrder(field string) bool { return slices.Contains(e.OrderFields, field) }

func (e Entity) IsHidden(column string) bool { return slices.Contains(e.Hidden, column) }

func (e Entity) Relation(name string) (Relation, bool) {
	rel, ok := e.Relations[name]
	return rel, ok
}

// SplitField separates a dotted search field into relation and column.
func SplitField(field string) (relation, column string, nested bool) {
	relation, column, nested = strings.Cut(field, ".")
	if !nested {
		return "", field, false
	}
	return relation, column, true
}

// Schema is the closed set of entity types the search layer serves. It is
// read-only after construction.
type Schema struct {
	entities map[string]Entity
	names    []string
}

// NewSchema validates entities and their cross references.
func NewSchema(entities ...Entity) (*Schema, error) {
	s := &Schema{entities: make(map[string]Entity, len(entities))}

	for _, e := range entities {
		if err := validateEntity(e); err != nil {
			return nil, err
		}
		if _, dup := s.entities[e.Name]; dup {
			return nil, goerrors.NewValidation("duplicate entity",
				goerrors.FieldError{Field: "name", Message: "already registered", Value: e.Name})
		}
		s.entities[e.Name] = e
		s.names = append(s.names, e.Name)
	}
	sort.Strings(s.names)

	for _, e := range entities {
		if err := s.validateReferences(e); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// MustSchema is NewSchema for static definitions.
func MustSchema(entities ...Entity) *Schema {
	s, err := NewSchema(entities...)
	if err != nil {
		panic(err)
	}
	return s
}

// Entity returns the definition registered under name.
func (s *Schema) Entity(name string) (Entity, bool) {
	e, ok := s.entities[name]
	return e, ok
}

// Names lists the registered entity types in sorted order.
func (s *Schema) Names() []string {
	return append([]string(nil), s.names...)
}

func validateEntity(e Entity) error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.Table, validation.Required),
		validation.Field(&e.Identity, validation.Required),
		validation.Field(&e.Columns, validation.Required),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, fmt.Sprintf("invalid entity %q", e.Name))
	}

	var fields []goerrors.FieldError
	check := func(group, name string) {
		if !e.HasColumn(name) {
			fields = append(fields, goerrors.FieldError{Field: group, Message: "unknown column", Value: name})
		}
	}

	check("identity", e.Identity)
	if e.Recency != "" {
		check("recency", e.Recency)
	}
	if e.StatusField != "" {
		check("status_field", e.StatusField)
	}
	for _, name := range e.Hidden {
		check("hidden", name)
	}
	for _, name := range e.FilterFields {
		check("filter_fields", name)
		if slices.Contains(reservedParams, name) {
			fields = append(fields, goerrors.FieldError{Field: "filter_fields", Message: "reserved name", Value: name})
		}
	}
	for _, name := range e.OrderFields {
		check("order_fields", name)
	}
	for name, rel := range e.Relations {
		if !e.HasColumn(rel.ForeignKey) {
			fields = append(fields, goerrors.FieldError{Field: "relations." + name, Message: "unknown foreign key", Value: rel.ForeignKey})
		}
	}
	for _, field := range e.SearchFields {
		if _, column, nested := SplitField(field); !nested {
			check("search_fields", column)
		}
	}

	if len(fields) > 0 {
		return goerrors.NewValidation(fmt.Sprintf("invalid entity %q", e.Name), fields...)
	}
	return nil
}

func (s *Schema) validateReferences(e Entity) error {
	var fields []goerrors.FieldError

	for name, rel := range e.Relations {
		if _, ok := s.entities[rel.Entity]; !ok {
			fields = append(fields, goerrors.FieldError{Field: "relations." + name, Message: "unknown entity", Value: rel.Entity})
		}
	}

	for _, field := range e.SearchFields {
		if err := s.checkSearchField(e, field); err != nil {
			fields = append(fields, *err)
		}
	}

	if len(fields) > 0 {
		return goerrors.NewValidation(fmt.Sprintf("invalid references on entity %q", e.Name), fields...)
	}
	return nil
}

// checkSearchField reports why field cannot be searched on e, or nil.
func (s *Schema) checkSearchField(e Entity, field string) *goerrors.FieldError {
	relName, column, nested := SplitField(field)
	if !nested {
		if !e.HasColumn(column) || e.IsHidden(column) {
			return &goerrors.FieldError{Field: "search_fields", Message: "not searchable", Value: field}
		}
		return nil
	}

	rel, ok := e.Relation(relName)
	if !ok {
		return &goerrors.FieldError{Field: "search_fields", Message: "unknown relation", Value: field}
	}
	target, ok := s.entities[rel.Entity]
	if !ok || strings.Contains(column, ".") || !target.HasColumn(column) || target.IsHidden(column) {
		return &goerrors.FieldError{Field: "search_fields", Message: "not searchable", Value: field}
	}
	return nil
}
