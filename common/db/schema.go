package db

import (
	"context"
	"fmt"
)

// The four durable relations. The plugins table enforces the single-owner
// invariant through its primary key; the retry table enforces one live entry
// per failure signature the same way.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS plugins (
		plugin   TEXT PRIMARY KEY,
		owner    TEXT NOT NULL,
		repo     TEXT NOT NULL,
		watchers INTEGER NOT NULL DEFAULT 0,
		forks    INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS repos (
		repo TEXT NOT NULL,
		tag  TEXT NOT NULL,
		PRIMARY KEY (repo, tag)
	)`,
	`CREATE TABLE IF NOT EXISTS actions (
		id     BIGSERIAL PRIMARY KEY,
		action TEXT NOT NULL,
		data   JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS retry (
		retry     TEXT PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		tries     INTEGER NOT NULL DEFAULT 0
	)`,
}

// Migrate creates the registry tables if they do not exist. Intended to run
// from the bootstrap DB init hook.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
