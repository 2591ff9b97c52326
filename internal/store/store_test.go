package store

import (
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promptbox.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"prompts", "cards", "sessions", "messages", "llm_calls"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s: %v", table, err)
		}
	}

	// Reopening an existing database must be a no-op.
	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	db2.Close()
}

func TestCascadeDelete(t *testing.T) {
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO sessions (id, name, provider, model) VALUES ('s1', 'n', 'mock', 'm')`); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO messages (id, session_id, position, role, content) VALUES ('m1', 's1', 0, 'user', 'hi')`); err != nil {
		t.Fatalf("insert message: %v", err)
	}

	if _, err := db.Exec(`DELETE FROM sessions WHERE id = 's1'`); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = 's1'`).Scan(&count); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Errorf("expected messages cascade deleted, found %d", count)
	}
}
