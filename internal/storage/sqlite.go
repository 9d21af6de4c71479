// Package storage keeps the history of proposal runs in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at the given path and runs migrations.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS proposals (
		id           TEXT PRIMARY KEY,
		repo         TEXT NOT NULL,
		purpose      TEXT NOT NULL,
		branch       TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		data         TEXT NOT NULL,
		created_at   DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_proposals_repo_branch ON proposals(repo, branch);
	CREATE INDEX IF NOT EXISTS idx_proposals_created ON proposals(created_at DESC);

	CREATE TABLE IF NOT EXISTS proposal_logs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		proposal_id TEXT NOT NULL,
		timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		level       TEXT NOT NULL DEFAULT 'info',
		message     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_proposal_logs_proposal ON proposal_logs(proposal_id, id);
	`

	_, err := d.db.Exec(schema)
	return err
}
