package inventory

import (
	"context"
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

// Migrate creates (or upgrades) the inventory schema in-place.
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS sweeps (
			sweep_id TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ns INTEGER NOT NULL,
			objects_listed INTEGER NOT NULL,
			objects_matched INTEGER NOT NULL,
			bytes_total INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sweeps_started_at ON sweeps(started_at);`,

		`CREATE TABLE IF NOT EXISTS objects_current (
			key TEXT PRIMARY KEY,
			size_bytes INTEGER NOT NULL,
			last_modified TEXT,
			etag TEXT,
			last_seen_sweep_id TEXT NOT NULL,
			last_seen_at TEXT NOT NULL,
			deleted_at TEXT,
			FOREIGN KEY(last_seen_sweep_id) REFERENCES sweeps(sweep_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_objects_current_last_seen ON objects_current(last_seen_sweep_id);`,
		`CREATE INDEX IF NOT EXISTS idx_objects_current_deleted_at ON objects_current(deleted_at);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	if current != SchemaVersion {
		if _, err := tx.ExecContext(ctx, `UPDATE schema_meta SET schema_version=? WHERE id=1`, SchemaVersion); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
