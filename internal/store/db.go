// Package store is the bot's SQLite journal: an append-mostly record of
// command runs and outbound sends, read back by wppbotctl.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection for journal.db.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode so wppbotctl can read
// while the daemon writes.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	return &DB{db}, nil
}

// OpenReadOnly opens an existing journal without creating or migrating it.
func OpenReadOnly(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	return &DB{db}, nil
}
