package database

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNew_SQLiteAndSchema(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite database: %v", err)
	}
	defer db.Close()

	if db.Driver() != "sqlite" {
		t.Errorf("Expected sqlite driver, got %q", db.Driver())
	}

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	// Idempotent on restart.
	if err := db.Initialize(); err != nil {
		t.Fatalf("Second initialize failed: %v", err)
	}

	for _, table := range []string{"api_keys", "assistants", "chats", "messages"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("Table %s missing: %v", table, err)
		}
	}
}

func TestTimeFormat_SortsLexicographically(t *testing.T) {
	// Fixed-width fractions keep string order equal to time order, which the
	// message transcript's ORDER BY relies on.
	times := []time.Time{
		time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 10, 0, 0, 500_000_000, time.UTC),
		time.Date(2026, 1, 1, 10, 0, 1, 0, time.UTC),
	}
	var prev string
	for i, ts := range times {
		formatted := ts.Format(TimeFormat)
		if i > 0 && formatted <= prev {
			t.Errorf("Format order broken: %q should sort after %q", formatted, prev)
		}
		parsed, err := time.Parse(time.RFC3339Nano, formatted)
		if err != nil {
			t.Fatalf("Round trip parse failed: %v", err)
		}
		if !parsed.Equal(ts) {
			t.Errorf("Round trip changed the time: %v vs %v", parsed, ts)
		}
		prev = formatted
	}
}
