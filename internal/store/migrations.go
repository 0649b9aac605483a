package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	return s.migrateV1()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		owner       TEXT NOT NULL,
		repo        TEXT NOT NULL,
		branch      TEXT NOT NULL,
		created_at  INTEGER NOT NULL,
		last_used   INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_last_used ON sessions(last_used);

	CREATE TABLE IF NOT EXISTS conversation_entries (
		session_id  TEXT NOT NULL,
		entry_id    INTEGER NOT NULL,
		kind        TEXT NOT NULL,
		text        TEXT NOT NULL DEFAULT '',
		plan_json   TEXT,
		created_at  INTEGER NOT NULL,
		PRIMARY KEY (session_id, entry_id)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_session ON conversation_entries(session_id, entry_id);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}
	return nil
}
