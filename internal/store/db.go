package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// stateFileMode keeps state.db private to its owner: it holds the session's tokens.
const stateFileMode os.FileMode = 0o600

// DB is the workspace's state.db: the session and profile slots, the theme, and the
// outbox of sends waiting for the backend.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the state file at path. The parent directory is
// created owner-only and the file is kept at stateFileMode, including one left with
// wider permissions by an older build.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, stateFileMode)
	if err != nil {
		return nil, fmt.Errorf("create state file: %w", err)
	}
	_ = f.Close()
	if err := os.Chmod(path, stateFileMode); err != nil {
		return nil, fmt.Errorf("restrict state file: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// dsn enables WAL so the outbox sender and API handlers can read while one writes, and
// waits on a busy lock instead of failing.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	q.Set("_synchronous", "NORMAL")
	return path + "?" + q.Encode()
}
