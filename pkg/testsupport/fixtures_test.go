package testsupport

import (
	"database/sql"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	return path
}

func TestFixturePath(t *testing.T) {
	tests := []struct {
		parts    []string
		expected string
	}{
		{parts: []string{"seed.json"}, expected: filepath.Join("testdata", "seed.json")},
		{parts: []string{"golden", "page.json"}, expected: filepath.Join("testdata", "golden", "page.json")},
	}

	for _, tt := range tests {
		if got := FixturePath(tt.parts...); got != tt.expected {
			t.Errorf("FixturePath(%v) = %q, want %q", tt.parts, got, tt.expected)
		}
	}
}

func TestLoadFixture(t *testing.T) {
	path := writeFile(t, "ward.txt", "east wing")

	if got := string(LoadFixture(t, path)); got != "east wing" {
		t.Errorf("expected %q, got %q", "east wing", got)
	}
}

func TestLoadRows(t *testing.T) {
	path := writeFile(t, "seed.json", `{
  "patients": [{"id": 1, "first_name": "Alice", "weight": 61.5, "is_active": true}],
  "wards": [{"id": 2, "capacity": 30}]
}`)

	tables := LoadRows(t, path)

	patient := tables["patients"][0]
	if patient["id"] != int64(1) {
		t.Errorf("expected int64 id, got %T(%v)", patient["id"], patient["id"])
	}
	if patient["weight"] != 61.5 {
		t.Errorf("expected fractional numbers untouched, got %v", patient["weight"])
	}
	if patient["is_active"] != true {
		t.Errorf("expected bool untouched, got %v", patient["is_active"])
	}
	if tables["wards"][0]["capacity"] != int64(30) {
		t.Errorf("expected int64 capacity, got %T", tables["wards"][0]["capacity"])
	}
}

func TestSQLStatements(t *testing.T) {
	script := `-- wards
CREATE TABLE wards (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);

-- beds
CREATE TABLE beds (id INTEGER PRIMARY KEY);
CREATE INDEX beds_id ON beds (id)`

	got := SQLStatements(script)
	expected := []string{
		"CREATE TABLE wards (\n    id INTEGER PRIMARY KEY,\n    name TEXT NOT NULL\n);",
		"CREATE TABLE beds (id INTEGER PRIMARY KEY);",
		"CREATE INDEX beds_id ON beds (id)",
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("SQLStatements() = %q, want %q", got, expected)
	}
}

func TestApplySQL(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	path := writeFile(t, "schema.sql", `CREATE TABLE wards (id INTEGER PRIMARY KEY, name TEXT);
INSERT INTO wards (id, name) VALUES (1, 'East');
INSERT INTO wards (id, name) VALUES (2, 'West');`)

	ApplySQL(t, db, path)

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM wards").Scan(&count); err != nil {
		t.Fatalf("count wards: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 wards, got %d", count)
	}
}
