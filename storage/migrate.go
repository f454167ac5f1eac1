package storage

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// SchemaVersion is the latest schema version supported by the migrator.
const SchemaVersion = 2

type statement struct {
	name string
	sql  string
}

// The statements upgrading the schema to version i+1
var migrations = [][]statement{
	{
		{"schedules table", `
			CREATE TABLE IF NOT EXISTS schedules (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				label TEXT NOT NULL,
				steps INTEGER NOT NULL,
				created_at TEXT NOT NULL
			);`},
		{"schedule_steps table", `
			CREATE TABLE IF NOT EXISTS schedule_steps (
				schedule_id INTEGER NOT NULL,
				depth INTEGER NOT NULL,
				sender_name TEXT NOT NULL,
				sender_index INTEGER NOT NULL,
				target_name TEXT NOT NULL,
				target_index INTEGER NOT NULL,
				event TEXT NOT NULL,
				message TEXT NOT NULL,
				PRIMARY KEY (schedule_id, depth),
				FOREIGN KEY(schedule_id) REFERENCES schedules(id) ON DELETE CASCADE
			);`},
		{"idx_schedules_label", `CREATE INDEX IF NOT EXISTS idx_schedules_label ON schedules(label);`},
	},
	{
		{"schedule_steps.unhandled", `ALTER TABLE schedule_steps ADD COLUMN unhandled INTEGER NOT NULL DEFAULT 0;`},
	},
}

// Migrate ensures the schema exists and is upgraded to SchemaVersion.
//
// Every version is applied in its own transaction together with its schema_migrations row.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("migrate: db is nil")
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`); err != nil {
		return errors.Wrap(err, "migrate: create schema_migrations")
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return errors.Wrap(err, "migrate: read current version")
	}
	for version := current + 1; version <= SchemaVersion; version++ {
		if err := migrate(ctx, db, version); err != nil {
			return err
		}
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "migrate %d: begin transaction", version)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, st := range migrations[version-1] {
		if _, err := tx.ExecContext(ctx, st.sql); err != nil {
			return errors.Wrapf(err, "migrate %d: %s", version, st.name)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES (?);`, version); err != nil {
		return errors.Wrapf(err, "migrate %d: record schema version", version)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "migrate %d: commit transaction", version)
	}
	return nil
}
