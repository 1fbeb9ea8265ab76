package database

import "database/sql"

const currentSchemaVersion = 2

var migrations = []migration{
	{
		version: 1,
		up: []string{
			`CREATE TABLE batches (
				id TEXT PRIMARY KEY,
				root TEXT NOT NULL DEFAULT '',
				output_dir TEXT NOT NULL,
				mode TEXT NOT NULL,

				-- Outcome counts
				total INTEGER NOT NULL DEFAULT 0,
				succeeded INTEGER NOT NULL DEFAULT 0,
				failed INTEGER NOT NULL DEFAULT 0,
				skipped INTEGER NOT NULL DEFAULT 0,
				cancelled INTEGER NOT NULL DEFAULT 0,

				started_at TEXT NOT NULL,
				finished_at TEXT NOT NULL
			)`,
			`CREATE INDEX idx_batches_started ON batches(started_at)`,

			`CREATE TABLE batch_files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
				file_id TEXT NOT NULL,
				source_path TEXT NOT NULL,
				status TEXT NOT NULL,
				destination TEXT NOT NULL DEFAULT '',
				error TEXT NOT NULL DEFAULT '',

				-- Resolved metadata
				media_type TEXT NOT NULL DEFAULT '',
				title TEXT NOT NULL DEFAULT '',
				year INTEGER,
				season INTEGER,
				episode INTEGER,
				catalog_id INTEGER,

				already_present INTEGER NOT NULL DEFAULT 0,
				duration_ms INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX idx_batch_files_batch ON batch_files(batch_id)`,
			`CREATE INDEX idx_batch_files_source ON batch_files(source_path)`,

			`CREATE TABLE schema_version (
				version INTEGER PRIMARY KEY,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`INSERT INTO schema_version (version) VALUES (1)`,
		},
	},
	{
		version: 2,
		up: []string{
			// Cache counters per batch
			`ALTER TABLE batches ADD COLUMN cache_hits INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE batches ADD COLUMN cache_misses INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE batches ADD COLUMN cache_unified INTEGER NOT NULL DEFAULT 0`,
			`INSERT INTO schema_version (version) VALUES (2)`,
		},
	},
}

type migration struct {
	version int
	up      []string
}

// applyMigrations applies any pending schema migrations. Each migration
// records its own schema_version row.
func applyMigrations(db *sql.DB) error {
	var currentVersion int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&currentVersion)
	if err != nil {
		// fresh database
		currentVersion = 0
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range m.up {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
