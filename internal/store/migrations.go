package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "short_term_entries: decaying working memory",
		SQL: `
CREATE TABLE short_term_entries (
    id                  TEXT PRIMARY KEY,
    content             TEXT NOT NULL,
    category            TEXT NOT NULL CHECK (category IN ('user', 'system', 'context', 'chat', 'dream')),
    importance          TEXT NOT NULL CHECK (importance IN ('low', 'normal', 'high')),
    created_at          INTEGER NOT NULL,
    last_reinforced_at  INTEGER NOT NULL,
    reinforcement_count INTEGER NOT NULL DEFAULT 0,
    strength            REAL NOT NULL DEFAULT 1.0
);

CREATE INDEX idx_st_category ON short_term_entries(category);
CREATE INDEX idx_st_created  ON short_term_entries(created_at DESC);
`,
	},
	{
		Version:     2,
		Description: "long_term_entries + lt_vectors: consolidated memory with embeddings",
		SQL: `
CREATE TABLE long_term_entries (
    id                  TEXT PRIMARY KEY,
    content             TEXT NOT NULL,
    category            TEXT NOT NULL,
    importance          TEXT NOT NULL,
    reinforcement_count INTEGER NOT NULL DEFAULT 0,
    created_at          INTEGER NOT NULL,
    promoted_at         INTEGER NOT NULL
);

CREATE INDEX idx_lt_category ON long_term_entries(category);

CREATE TABLE lt_vectors (
    entry_id   TEXT PRIMARY KEY,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (entry_id) REFERENCES long_term_entries(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     3,
		Description: "emotion_state: single-row affect snapshot",
		SQL: `
CREATE TABLE emotion_state (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    happiness   REAL NOT NULL,
    trust       REAL NOT NULL,
    energy      REAL NOT NULL,
    curiosity   REAL NOT NULL,
    frustration REAL NOT NULL,
    motivation  REAL NOT NULL,
    updated_at  INTEGER NOT NULL
);
`,
	},
	{
		Version:     4,
		Description: "consolidation_log + runtime_counters: sweep diagnostics and triggers",
		SQL: `
CREATE TABLE consolidation_log (
    id               INTEGER PRIMARY KEY,
    started_at       INTEGER NOT NULL,
    entries_scanned  INTEGER NOT NULL,
    entries_promoted INTEGER NOT NULL,
    entries_evicted  INTEGER NOT NULL
);

CREATE INDEX idx_consolidation_started ON consolidation_log(started_at DESC);

CREATE TABLE runtime_counters (
    name  TEXT PRIMARY KEY,
    value INTEGER NOT NULL DEFAULT 0
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
