package memory

import (
	"fmt"
	"time"
)

// migration is one forward schema step. Down statements are kept for
// operator reference and test rollbacks; the engine only ever applies
// ups, each inside its own transaction.
type migration struct {
	version     int
	description string
	up          string
	down        string
}

var migrations = []migration{
	{
		version:     1,
		description: "memory table, FTS5 index, sync triggers",
		up: `
			CREATE TABLE memory (
				id           TEXT PRIMARY KEY,
				content      TEXT NOT NULL,
				category     TEXT NOT NULL DEFAULT 'general',
				session_id   TEXT,
				project_id   TEXT,
				source       TEXT,
				time_created INTEGER NOT NULL,
				time_updated INTEGER NOT NULL
			);

			CREATE INDEX idx_memory_session  ON memory(session_id);
			CREATE INDEX idx_memory_category ON memory(category);
			CREATE INDEX idx_memory_project  ON memory(project_id);

			CREATE VIRTUAL TABLE memory_fts USING fts5(
				content,
				category,
				source,
				content='memory',
				tokenize='porter unicode61'
			);

			CREATE TRIGGER memory_fts_insert AFTER INSERT ON memory BEGIN
				INSERT INTO memory_fts(rowid, content, category, source)
				VALUES (new.rowid, new.content, new.category, new.source);
			END;

			CREATE TRIGGER memory_fts_delete AFTER DELETE ON memory BEGIN
				INSERT INTO memory_fts(memory_fts, rowid, content, category, source)
				VALUES ('delete', old.rowid, old.content, old.category, old.source);
			END;

			CREATE TRIGGER memory_fts_update AFTER UPDATE ON memory BEGIN
				INSERT INTO memory_fts(memory_fts, rowid, content, category, source)
				VALUES ('delete', old.rowid, old.content, old.category, old.source);
				INSERT INTO memory_fts(rowid, content, category, source)
				VALUES (new.rowid, new.content, new.category, new.source);
			END;
		`,
		down: `
			DROP TRIGGER memory_fts_update;
			DROP TRIGGER memory_fts_delete;
			DROP TRIGGER memory_fts_insert;
			DROP TABLE memory_fts;
			DROP TABLE memory;
		`,
	},
	{
		version:     2,
		description: "memory_tags table",
		up: `
			CREATE TABLE memory_tags (
				memory_id TEXT NOT NULL REFERENCES memory(id) ON DELETE CASCADE,
				tag       TEXT NOT NULL,
				PRIMARY KEY (memory_id, tag)
			);

			CREATE INDEX idx_memory_tags_tag ON memory_tags(tag);
		`,
		down: `DROP TABLE memory_tags;`,
	},
	{
		version:     3,
		description: "access tracking columns",
		up: `
			ALTER TABLE memory ADD COLUMN access_count INTEGER NOT NULL DEFAULT 0;
			ALTER TABLE memory ADD COLUMN time_last_accessed INTEGER;
		`,
		down: `
			ALTER TABLE memory DROP COLUMN time_last_accessed;
			ALTER TABLE memory DROP COLUMN access_count;
		`,
	},
	{
		version:     4,
		description: "memory_links table",
		up: `
			CREATE TABLE memory_links (
				source_id    TEXT NOT NULL REFERENCES memory(id) ON DELETE CASCADE,
				target_id    TEXT NOT NULL REFERENCES memory(id) ON DELETE CASCADE,
				relationship TEXT NOT NULL CHECK (relationship IN ('related', 'supersedes', 'contradicts', 'extends')),
				PRIMARY KEY (source_id, target_id)
			);

			CREATE INDEX idx_memory_links_target ON memory_links(target_id);
			CREATE INDEX idx_memory_links_rel    ON memory_links(relationship);
		`,
		down: `DROP TABLE memory_links;`,
	},
	{
		version:     5,
		description: "metadata key-value table",
		up: `
			CREATE TABLE metadata (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);
		`,
		down: `DROP TABLE metadata;`,
	},
	{
		version:     6,
		description: "query-path indexes",
		up: `
			CREATE INDEX idx_memory_project_category ON memory(project_id, category);
			CREATE INDEX idx_memory_time_created     ON memory(time_created);
			CREATE INDEX idx_memory_access_count     ON memory(access_count);
		`,
		down: `
			DROP INDEX idx_memory_access_count;
			DROP INDEX idx_memory_time_created;
			DROP INDEX idx_memory_project_category;
		`,
	},
}

// migrate applies every pending migration in order. Failure aborts the
// open; the caller latches the error so the process never retries
// against a half-migrated database.
func (s *Store) migrate() error {
	if _, err := s.execHook(s.db, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	applied, err := s.appliedVersions()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("v%d (%s): %w", m.version, m.description, err)
		}
	}
	return nil
}

func (s *Store) appliedVersions() (map[int]bool, error) {
	rows, err := s.queryItHook(s.db, "SELECT version FROM _migrations")
	if err != nil {
		return nil, fmt.Errorf("read _migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// applyMigration runs one up inside its own transaction and records it.
func (s *Store) applyMigration(m migration) error {
	tx, err := s.beginTxHook()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.execHook(tx, m.up); err != nil {
		return err
	}
	if _, err := s.execHook(tx, `
		INSERT INTO _migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.version, m.description, timeNow().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return s.commitHook(tx)
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM _migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}

// downTo rolls the schema back to the given version, newest first.
// Downgrades are an operator action; nothing in the engine calls this
// outside of tests.
func (s *Store) downTo(version int) error {
	applied, err := s.appliedVersions()
	if err != nil {
		return err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if m.version <= version {
			break
		}
		if !applied[m.version] {
			continue
		}

		tx, err := s.beginTxHook()
		if err != nil {
			return fmt.Errorf("down v%d: begin: %w", m.version, err)
		}
		if _, err := s.execHook(tx, m.down); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("down v%d: %w", m.version, err)
		}
		if _, err := s.execHook(tx, "DELETE FROM _migrations WHERE version = ?", m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("down v%d: record: %w", m.version, err)
		}
		if err := s.commitHook(tx); err != nil {
			return fmt.Errorf("down v%d: commit: %w", m.version, err)
		}
	}
	return nil
}
