package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS entries (
		chat_id        INTEGER NOT NULL,
		seq            INTEGER NOT NULL,
		sender_id      TEXT    NOT NULL DEFAULT '',
		display_name   TEXT    NOT NULL DEFAULT '',
		username       TEXT    NOT NULL DEFAULT '',
		text           TEXT    NOT NULL DEFAULT '',
		quote          TEXT    NOT NULL DEFAULT '',
		has_quote      INTEGER NOT NULL DEFAULT 0,
		addressed      INTEGER NOT NULL DEFAULT 0,
		from_agent     INTEGER NOT NULL DEFAULT 0,
		has_attachment INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		PRIMARY KEY (chat_id, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_entries_chat ON entries(chat_id, seq)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
