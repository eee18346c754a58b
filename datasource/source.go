package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-hms-cache/cache"
	"github.com/goliatone/go-hms-cache/search"
)

// likeEscape is the escape character of LIKE patterns built from search terms.
const likeEscape = "!"

var (
	_ search.DataSource = (*Source)(nil)
	_ search.Writer     = (*Source)(nil)
)

// Source runs searches and writes over a bun database.
type Source struct {
	db     *bun.DB
	schema *search.Schema
	logger *zap.Logger
}

// New wraps db. Queries are logged at debug level on logger.
func New(db *bun.DB, schema *search.Schema, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("datasource")
	db.AddQueryHook(&queryLogger{logger: logger})

	return &Source{db: db, schema: schema, logger: logger}
}

// DB exposes the underlying database handle.
func (s *Source) DB() *bun.DB {
	return s.db
}

func (s *Source) Close() error {
	return s.db.Close()
}

// Query returns one page of q and the number of rows matching it.
func (s *Source) Query(ctx context.Context, q search.Query) ([]cache.Record, int64, error) {
	entity := q.Entity

	sel := s.db.NewSelect().
		Table(entity.Table).
		Column(visibleColumns(entity)...)

	sel = applyFilters(sel, q.Filters)
	if q.SearchTerm != "" {
		var err error
		sel, err = s.applySearch(sel, entity, q.SearchTerm, q.SearchFields)
		if err != nil {
			return nil, 0, err
		}
	}

	total, err := sel.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", entity.Table, err)
	}

	order := q.Order()
	sel = sel.OrderExpr("? DESC", bun.Ident(order))
	if order != entity.Identity {
		sel = sel.OrderExpr("? DESC", bun.Ident(entity.Identity))
	}

	var rows []map[string]any
	if err := sel.Limit(q.Limit()).Offset(q.Offset()).Scan(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("select %s: %w", entity.Table, err)
	}

	records := toRecords(rows)
	for _, name := range q.IncludeRelations {
		if err := s.loadRelation(ctx, entity, name, records); err != nil {
			return nil, 0, err
		}
	}

	return records, int64(total), nil
}

// CountBy counts rows of entity grouped by field. An empty field skips the
// grouping and returns the total only.
func (s *Source) CountBy(ctx context.Context, entity search.Entity, field string) (map[string]int64, int64, error) {
	total, err := s.db.NewSelect().Table(entity.Table).Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", entity.Table, err)
	}

	groups := make(map[string]int64)
	if field == "" {
		return groups, int64(total), nil
	}
	if !entity.HasColumn(field) {
		return nil, 0, fmt.Errorf("count %s: unknown column %q", entity.Table, field)
	}

	var rows []map[string]any
	err = s.db.NewSelect().
		Table(entity.Table).
		ColumnExpr("? AS value", bun.Ident(field)).
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("?", bun.Ident(field)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, 0, fmt.Errorf("group %s by %s: %w", entity.Table, field, err)
	}

	for _, row := range rows {
		groups[groupLabel(row["value"])] += toInt64(row["count"])
	}
	return groups, int64(total), nil
}

func applyFilters(sel *bun.SelectQuery, filters map[string]any) *bun.SelectQuery {
	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		sel = sel.Where("? = ?", bun.Ident(field), filters[field])
	}
	return sel
}

// applySearch matches term as a case-insensitive substring of any of fields.
// A dotted field matches through the relation's foreign key.
func (s *Source) applySearch(sel *bun.SelectQuery, entity search.Entity, term string, fields []string) (*bun.SelectQuery, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

	type condition struct {
		query string
		args  []any
	}
	conditions := make([]condition, 0, len(fields))

	for _, field := range fields {
		relName, column, nested := search.SplitField(field)
		if !nested {
			conditions = append(conditions, condition{
				query: "LOWER(?) LIKE ? ESCAPE '" + likeEscape + "'",
				args:  []any{bun.Ident(column), pattern},
			})
			continue
		}

		rel, ok := entity.Relation(relName)
		if !ok {
			return nil, fmt.Errorf("search %s: unknown relation %q", entity.Name, relName)
		}
		target, ok := s.schema.Entity(rel.Entity)
		if !ok {
			return nil, fmt.Errorf("search %s: unknown entity %q", entity.Name, rel.Entity)
		}
		conditions = append(conditions, condition{
			query: "? IN (SELECT ? FROM ? WHERE LOWER(?) LIKE ? ESCAPE '" + likeEscape + "')",
			args: []any{
				bun.Ident(rel.ForeignKey),
				bun.Ident(target.Identity),
				bun.Ident(target.Table),
				bun.Ident(column),
				pattern,
			},
		})
	}

	return sel.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, c := range conditions {
			q = q.WhereOr(c.query, c.args...)
		}
		return q
	}), nil
}

// loadRelation attaches the related row of every record under name, or nil
// when the foreign key is empty or dangling.
func (s *Source) loadRelation(ctx context.Context, entity search.Entity, name string, records []cache.Record) error {
	rel, ok := entity.Relation(name)
	if !ok {
		return fmt.Errorf("load %s.%s: unknown relation", entity.Name, name)
	}
	target, ok := s.schema.Entity(rel.Entity)
	if !ok {
		return fmt.Errorf("load %s.%s: unknown entity %q", entity.Name, name, rel.Entity)
	}

	seen := make(map[string]struct{})
	var ids []any
	for _, record := range records {
		id := record[rel.ForeignKey]
		if id == nil {
			continue
		}
		if _, ok := seen[idKey(id)]; ok {
			continue
		}
		seen[idKey(id)] = struct{}{}
		ids = append(ids, id)
	}

	related := make(map[string]cache.Record, len(ids))
	if len(ids) > 0 {
		var rows []map[string]any
		err := s.db.NewSelect().
			Table(target.Table).
			Column(visibleColumns(target)...).
			Where("? IN (?)", bun.Ident(target.Identity), bun.In(ids)).
			Scan(ctx, &rows)
		if err != nil {
			return fmt.Errorf("load %s.%s: %w", entity.Name, name, err)
		}
		for _, row := range toRecords(rows) {
			related[idKey(row[target.Identity])] = row
		}
	}

	for _, record := range records {
		var value any
		if id := record[rel.ForeignKey]; id != nil {
			if row, ok := related[idKey(id)]; ok {
				value = row
			}
		}
		record[name] = value
	}
	return nil
}

// Create inserts values into entity's table and returns the stored row.
func (s *Source) Create(ctx context.Context, entity search.Entity, values cache.Record) (cache.Record, error) {
	if err := checkColumns(entity, values); err != nil {
		return nil, err
	}

	row := map[string]any(values)
	created := make(map[string]any)
	_, err := s.db.NewInsert().
		Model(&row).
		Table(entity.Table).
		Returning("*").
		Exec(ctx, &created)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", entity.Table, err)
	}
	return stripHidden(entity, created), nil
}

// Update changes the row identified by id and returns it.
func (s *Source) Update(ctx context.Context, entity search.Entity, id any, values cache.Record) (cache.Record, error) {
	if err := checkColumns(entity, values); err != nil {
		return nil, err
	}
	if _, ok := values[entity.Identity]; ok {
		return nil, goerrors.NewValidation("identity cannot change",
			goerrors.FieldError{Field: entity.Identity, Message: "read only"})
	}

	row := map[string]any(values)
	res, err := s.db.NewUpdate().
		Model(&row).
		Table(entity.Table).
		Where("? = ?", bun.Ident(entity.Identity), id).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", entity.Table, err)
	}
	if err := requireAffected(res, entity, id); err != nil {
		return nil, err
	}

	return s.get(ctx, entity, id)
}

// Delete removes the row identified by id.
func (s *Source) Delete(ctx context.Context, entity search.Entity, id any) error {
	res, err := s.db.NewDelete().
		Table(entity.Table).
		Where("? = ?", bun.Ident(entity.Identity), id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity.Table, err)
	}
	return requireAffected(res, entity, id)
}

func (s *Source) get(ctx context.Context, entity search.Entity, id any) (cache.Record, error) {
	row := make(map[string]any)
	err := s.db.NewSelect().
		Table(entity.Table).
		Column(visibleColumns(entity)...).
		Where("? = ?", bun.Ident(entity.Identity), id).
		Limit(1).
		Scan(ctx, &row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(entity, id)
		}
		return nil, fmt.Errorf("select %s: %w", entity.Table, err)
	}
	return toRecord(row), nil
}

func checkColumns(entity search.Entity, values cache.Record) error {
	if len(values) == 0 {
		return goerrors.NewValidation("no values to write",
			goerrors.FieldError{Field: "values", Message: "empty"})
	}

	var fields []goerrors.FieldError
	for column := range values {
		if !entity.HasColumn(column) {
			fields = append(fields, goerrors.FieldError{Field: column, Message: "unknown column"})
		}
	}
	if len(fields) > 0 {
		sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return goerrors.NewValidation(fmt.Sprintf("invalid values for %s", entity.Name), fields...)
	}
	return nil
}

func requireAffected(res sql.Result, entity search.Entity, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", entity.Table, err)
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

func notFound(entity search.Entity, id any) error {
	return goerrors.Wrap(sql.ErrNoRows, goerrors.CategoryNotFound, fmt.Sprintf("%s %v not found", entity.Name, id)).
		WithTextCode("NOT_FOUND")
}

func visibleColumns(entity search.Entity) []string {
	columns := make([]string, 0, len(entity.Columns))
	for _, column := range entity.Columns {
		if !entity.IsHidden(column) {
			columns = append(columns, column)
		}
	}
	return columns
}

func stripHidden(entity search.Entity, row map[string]any) cache.Record {
	for _, column := range entity.Hidden {
		delete(row, column)
	}
	return toRecord(row)
}

func toRecords(rows []map[string]any) []cache.Record {
	out := make([]cache.Record, len(rows))
	for i, row := range rows {
		out[i] = toRecord(row)
	}
	return out
}

// toRecord converts driver byte slices to strings so values compare and
// render the same on every dialect.
func toRecord(row map[string]any) cache.Record {
	record := make(cache.Record, len(row))
	for column, value := range row {
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		record[column] = value
	}
	return record
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return replacer.Replace(term)
}

func idKey(id any) string {
	if b, ok := id.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(id)
}

func groupLabel(v any) string {
	switch value := v.(type) {
	case nil:
		return "none"
	case []byte:
		return string(value)
	case bool:
		if value {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(value)
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		var out int64
		fmt.Sscan(string(n), &out)
		return out
	default:
		return 0
	}
}
