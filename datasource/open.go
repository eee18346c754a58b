package datasource

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/goliatone/go-hms-cache/search"
)

// Open connects to the database named by dsn. Postgres URLs
// (postgres:// or postgresql://) use lib/pq. sqlite:// URLs, file: URIs and
// ":memory:" use go-sqlite3.
func Open(dsn string, schema *search.Schema, logger *zap.Logger) (*Source, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, err
	}
	return New(db, schema, logger), nil
}

// OpenDB opens a bun database for dsn with the matching dialect.
func OpenDB(dsn string) (*bun.DB, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil

	case strings.HasPrefix(dsn, "sqlite://"), strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		path := strings.TrimPrefix(dsn, "sqlite://")
		sqldb, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if isMemory(path) {
			// every connection to :memory: is a separate database
			sqldb.SetMaxOpenConns(1)
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil

	default:
		return nil, fmt.Errorf("unsupported database url %q", redact(dsn))
	}
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// redact hides credentials in a connection string before it is logged.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***" + rest[at:]
	}
	return scheme + "://" + rest
}
