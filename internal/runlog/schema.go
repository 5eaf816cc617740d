// Package runlog provides a SQLite-backed history of transform runs and a
// searchable copy of the last exported concepts.
package runlog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at      DATETIME NOT NULL,
	finished_at     DATETIME NOT NULL,
	status          TEXT NOT NULL,
	fingerprint     TEXT NOT NULL DEFAULT '',
	total_concepts  INTEGER NOT NULL DEFAULT 0,
	concept_schemes INTEGER NOT NULL DEFAULT 0,
	max_depth       INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_warnings (
	run_id    INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	code      TEXT NOT NULL,
	scheme_id TEXT NOT NULL DEFAULT '',
	lim       INTEGER NOT NULL,
	actual    INTEGER NOT NULL,
	message   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS concepts (
	id          TEXT PRIMARY KEY,
	position    INTEGER NOT NULL,
	label       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	scheme_id   TEXT NOT NULL DEFAULT '',
	broader_id  TEXT NOT NULL DEFAULT '',
	alt_labels  TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_run_warnings_run ON run_warnings(run_id);
CREATE INDEX IF NOT EXISTS idx_concepts_scheme ON concepts(scheme_id);
CREATE INDEX IF NOT EXISTS idx_concepts_broader ON concepts(broader_id);
`

// DB wraps a sql.DB with run-log operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("runlog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("runlog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("runlog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
