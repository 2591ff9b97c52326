// Package store owns the SQLite database: opening, schema management and the
// handle shared by the domain stores layered on top of it.
package store

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS prompts (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	folder      TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '',
	hash        TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(folder, name)
);

CREATE TABLE IF NOT EXISTS cards (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	folder                TEXT NOT NULL DEFAULT '',
	kind                  TEXT NOT NULL DEFAULT 'character',
	description           TEXT NOT NULL DEFAULT '',
	first_message         TEXT NOT NULL DEFAULT '',
	system_instruction    TEXT NOT NULL DEFAULT '',
	user_instruction      TEXT NOT NULL DEFAULT '',
	assistant_instruction TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at            TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(folder, name)
);

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	provider   TEXT NOT NULL,
	model      TEXT NOT NULL,
	prompt_id  TEXT REFERENCES prompts(id) ON DELETE SET NULL,
	card_id    TEXT REFERENCES cards(id) ON DELETE SET NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(session_id, position)
);

CREATE TABLE IF NOT EXISTS llm_calls (
	id                TEXT PRIMARY KEY,
	request_id        TEXT NOT NULL,
	session_id        TEXT NOT NULL DEFAULT '',
	provider          TEXT NOT NULL,
	model             TEXT NOT NULL,
	success           INTEGER NOT NULL,
	error_type        TEXT NOT NULL DEFAULT '',
	error_message     TEXT NOT NULL DEFAULT '',
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens      INTEGER NOT NULL DEFAULT 0,
	execution_ms      INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, position);
CREATE INDEX IF NOT EXISTS idx_llm_calls_created ON llm_calls(created_at);
CREATE INDEX IF NOT EXISTS idx_prompts_folder ON prompts(folder);
CREATE INDEX IF NOT EXISTS idx_cards_folder ON cards(folder);
`

// Open opens (creating if needed) the SQLite database at path and applies the
// schema. WAL mode keeps readers unblocked during writes; busy_timeout covers
// the brief write lock contention between the server and CLI sharing a file.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// OpenInMemory opens a throwaway in-memory database with the schema applied.
// Intended for tests.
func OpenInMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}
