package testsupport

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FixturePath joins parts under the testdata directory of the calling package.
func FixturePath(parts ...string) string {
	return filepath.Join(append([]string{"testdata"}, parts...)...)
}

// LoadFixture reads a fixture file. The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON reads a JSON fixture into dest.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadRows reads a JSON object of table name to rows. Whole numbers come back
// as int64 so rows can be inserted into integer columns as they are.
func LoadRows(t testing.TB, path string) map[string][]map[string]any {
	t.Helper()

	var tables map[string][]map[string]any
	LoadFixtureJSON(t, path, &tables)

	for _, rows := range tables {
		for _, row := range rows {
			for k, v := range row {
				if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
					row[k] = int64(f)
				}
			}
		}
	}
	return tables
}

// SQLStatements splits a SQL script on statement terminators. Lines starting
// with "--" are dropped.
func SQLStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}

// ApplySQL runs every statement of a SQL fixture against db.
func ApplySQL(t testing.TB, db *sql.DB, path string) {
	t.Helper()

	for i, stmt := range SQLStatements(string(LoadFixture(t, path))) {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("statement %d of %s failed: %v", i+1, path, err)
		}
	}
}
