package database

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/jmoiron/sqlx"
)

// columnTypes holds the per-dialect spellings used by the schema template.
type columnTypes struct {
	ID        string
	Time      string
	TextArray string
}

var dialectTypes = map[string]columnTypes{
	dialect.Postgres: {ID: "UUID", Time: "TIMESTAMPTZ", TextArray: "TEXT[]"},
	dialect.SQLite:   {ID: "TEXT", Time: "TIMESTAMP", TextArray: "TEXT"},
}

// schema is applied in order. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id {{ID}} PRIMARY KEY,
		client_id TEXT NOT NULL,
		hustler_id TEXT NULL,
		state TEXT NOT NULL,
		deadline {{TIME}} NOT NULL,
		accepted_at {{TIME}} NULL,
		completed_at {{TIME}} NULL,
		created_at {{TIME}} NOT NULL,
		updated_at {{TIME}} NOT NULL,
		version BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_state_deadline_idx ON tasks (state, deadline)`,
	`CREATE INDEX IF NOT EXISTS tasks_client_id_idx ON tasks (client_id)`,
	`CREATE TABLE IF NOT EXISTS escrows (
		id {{ID}} PRIMARY KEY,
		task_id {{ID}} NOT NULL UNIQUE REFERENCES tasks (id),
		amount BIGINT NOT NULL CHECK (amount > 0),
		state TEXT NOT NULL,
		split_percent INTEGER NULL,
		hustler_amount BIGINT NULL,
		client_amount BIGINT NULL,
		funded_at {{TIME}} NULL,
		released_at {{TIME}} NULL,
		refunded_at {{TIME}} NULL,
		created_at {{TIME}} NOT NULL,
		updated_at {{TIME}} NOT NULL,
		version BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS proofs (
		id {{ID}} PRIMARY KEY,
		task_id {{ID}} NOT NULL REFERENCES tasks (id),
		hustler_id TEXT NOT NULL,
		task_client_id TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		photo_urls {{TEXT_ARRAY}} NOT NULL,
		before_after_marked BOOLEAN NOT NULL DEFAULT FALSE,
		state TEXT NOT NULL,
		quality TEXT NOT NULL,
		submitted_at {{TIME}} NOT NULL,
		reviewed_at {{TIME}} NULL,
		rejection_reason TEXT NULL,
		version BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS proofs_task_id_idx ON proofs (task_id, submitted_at)`,
	`CREATE TABLE IF NOT EXISTS lifecycle_events (
		id {{ID}} PRIMARY KEY,
		entity TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		actor_id TEXT NULL,
		occurred_at {{TIME}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS lifecycle_events_entity_idx ON lifecycle_events (entity, entity_id)`,
}

// Statements renders the schema for a driver name.
func Statements(driver string) ([]string, error) {
	types, ok := dialectTypes[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q", driver)
	}
	r := strings.NewReplacer(
		"{{ID}}", types.ID,
		"{{TIME}}", types.Time,
		"{{TEXT_ARRAY}}", types.TextArray,
	)

	stmts := make([]string, len(schema))
	for i, s := range schema {
		stmts[i] = r.Replace(s)
	}
	return stmts, nil
}

// Migrate applies the schema inside one transaction.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, err := Statements(db.DriverName())
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
