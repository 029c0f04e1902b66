// Package history provides a SQLite-backed log of finished compilations.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultFile is the database file name used inside the settings directory.
const DefaultFile = "history.db"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS compiles (
	id           TEXT PRIMARY KEY,
	mode         TEXT NOT NULL,
	project      TEXT NOT NULL DEFAULT '',
	file         TEXT NOT NULL DEFAULT '',
	success      INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	output_bytes INTEGER NOT NULL DEFAULT 0,
	checksum     TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	duration_ns  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_compiles_project ON compiles(project, started_at);
CREATE INDEX IF NOT EXISTS idx_compiles_started ON compiles(started_at);
`

// DB wraps a sql.DB with history-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, fmt.Errorf("history: create db dir: %w", err)
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
