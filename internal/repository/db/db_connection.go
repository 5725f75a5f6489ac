package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// sqlite allows one writer at a time; the journal and state writers share a
// single connection and wait on each other via busy_timeout.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// migrations are applied in order. PRAGMA user_version records how many have
// run, so existing files only receive the new ones.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS oven_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		phase TEXT NOT NULL,
		profile TEXT NOT NULL DEFAULT '',
		oven_on BOOLEAN NOT NULL,
		temp_c REAL NOT NULL,
		target_c REAL NOT NULL DEFAULT 0,
		delta_c REAL NOT NULL DEFAULT 0,
		target_velocity REAL NOT NULL DEFAULT 0,
		velocity REAL,
		trend REAL,
		elapsed_s REAL NOT NULL DEFAULT 0,
		profile_length_s REAL NOT NULL DEFAULT 0,
		fault_code INTEGER NOT NULL DEFAULT 0,
		open_door BOOLEAN NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS oven_events (
		id TEXT PRIMARY KEY,
		occurred_at TIMESTAMP NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		meta TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_oven_events_occurred_at ON oven_events (occurred_at)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_oven_events_type ON oven_events (type, occurred_at)`,
}

// InitDB opens or creates the sqlite file at path and brings its schema up
// to date.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func prepare(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return migrate(ctx, db)
}

// SchemaVersion reports how many migrations the database has applied.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	applied, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if applied >= len(migrations) {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := applied; i < len(migrations); i++ {
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	// PRAGMA does not take bind parameters
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
