package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)

// newTestDB returns an initialised in-memory database with a fixed clock.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}
	db.SetClock(func() time.Time { return testNow })
	return db
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var mode string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	if err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected journal_mode wal, got %s", mode)
	}

	var fk int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("Expected foreign_keys enabled (1), got %d", fk)
	}

	if db.Driver() != DriverSQLite {
		t.Errorf("Expected driver %s, got %s", DriverSQLite, db.Driver())
	}
}

func TestConnectUnknownDriver(t *testing.T) {
	if _, err := Connect("mysql", "x"); err == nil {
		t.Fatal("Expected error for unknown driver")
	}
}

func TestMigrate(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	schema := `
	CREATE TABLE test (
		id INTEGER PRIMARY KEY,
		name TEXT
	);
	`
	ctx := context.Background()
	if err := db.Migrate(ctx, schema); err != nil {
		t.Fatalf("Migration failed: %v", err)
	}

	_, err = db.Exec("INSERT INTO test (name) VALUES (?)", "foo")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var name string
	err = db.QueryRow("SELECT name FROM test WHERE id = 1").Scan(&name)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if name != "foo" {
		t.Errorf("Expected foo, got %s", name)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Init(ctx); err != nil {
		t.Fatalf("Second init failed: %v", err)
	}

	for _, table := range []string{"goals", "tasks", "habits", "habit_checks", "decision_logs", "decision_candidates"} {
		if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
			t.Errorf("Table %s does not exist or query failed: %v", table, err)
		}
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver string
		in     string
		want   string
	}{
		{DriverSQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{DriverPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{DriverPostgres, "INSERT INTO t VALUES (?, ?, ?)", "INSERT INTO t VALUES ($1, $2, $3)"},
		{DriverPostgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		if got := rebind(tt.driver, tt.in); got != tt.want {
			t.Errorf("rebind(%s, %q) = %q, want %q", tt.driver, tt.in, got, tt.want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "?, ?, ?" {
		t.Errorf("Expected '?, ?, ?', got %q", got)
	}
	if got := placeholders(0); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}
