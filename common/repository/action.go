package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pluginsite/registry/common/db"
	"github.com/pluginsite/registry/common/models"
)

// ActionRepository is the append-only action log. Entries are never mutated
// or deleted; consumers poll forward from their own persisted cursor.
type ActionRepository struct {
	db *db.DB
}

// NewActionRepository creates a new action log
func NewActionRepository(db *db.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Append writes one entry and returns its assigned id
func (r *ActionRepository) Append(ctx context.Context, action string, data any) (int64, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("encode %s action: %w", action, err)
	}

	var id int64
	err = r.db.QueryRow(ctx,
		`INSERT INTO actions (action, data) VALUES ($1, $2) RETURNING id`,
		action, payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append %s action: %w", action, err)
	}
	return id, nil
}

// First returns the oldest entry, or nil when the log is empty
func (r *ActionRepository) First(ctx context.Context) (*models.Action, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, action, data FROM actions ORDER BY id ASC LIMIT 1`))
}

// NextAfter returns the first entry with an id greater than the cursor, or
// nil when the consumer is caught up.
func (r *ActionRepository) NextAfter(ctx context.Context, id int64) (*models.Action, error) {
	return r.scanOne(r.db.QueryRow(ctx,
		`SELECT id, action, data FROM actions WHERE id > $1 ORDER BY id ASC LIMIT 1`, id))
}

// ReleaseVersions returns every version of a plugin recorded in the log.
// Duplicate appends of the same release collapse here.
func (r *ActionRepository) ReleaseVersions(ctx context.Context, plugin string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT data->'manifest'->>'version'
		 FROM actions
		 WHERE action = $1 AND data->'manifest'->>'name' = $2`,
		models.ActionAddRelease, plugin)
	if err != nil {
		return nil, fmt.Errorf("load versions for %s: %w", plugin, err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions for %s: %w", plugin, err)
	}
	return versions, nil
}

func (r *ActionRepository) scanOne(row pgx.Row) (*models.Action, error) {
	var a models.Action
	err := row.Scan(&a.ID, &a.Action, &a.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read action log: %w", err)
	}
	return &a, nil
}
