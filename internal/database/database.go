// Package database stores the history of organize batches in SQLite.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/fuunylmz/Re-aniname/internal/paths"
)

// HistoryDB is the handle for the batch history database.
type HistoryDB struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at the default location.
func Open() (*HistoryDB, error) {
	dbPath, err := paths.HistoryPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve history path: %w", err)
	}
	return OpenPath(dbPath)
}

// OpenPath opens or creates the database at a specific path.
func OpenPath(path string) (*HistoryDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return setup(db, path, "PRAGMA journal_mode=WAL")
}

// OpenInMemory opens an in-memory database for testing.
func OpenInMemory() (*HistoryDB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return setup(db, ":memory:")
}

func setup(db *sql.DB, path string, extra ...string) (*HistoryDB, error) {
	// a single connection keeps per-connection pragmas and in-memory
	// databases consistent
	db.SetMaxOpenConns(1)

	pragmas := append([]string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}, extra...)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	h := &HistoryDB{db: db, path: path}
	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return h, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Path returns the filesystem path to the database file.
func (h *HistoryDB) Path() string {
	return h.path
}

// SchemaVersion returns the latest applied migration.
func (h *HistoryDB) SchemaVersion() (int, error) {
	var v int
	err := h.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&v)
	return v, err
}
