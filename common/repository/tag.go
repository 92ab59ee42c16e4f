package repository

import (
	"context"
	"fmt"

	"github.com/pluginsite/registry/common/db"
)

// TagRepository is the tag ledger: the set of (repository, tag) pairs the
// pipeline has already dealt with, valid or not. Presence means "never
// process this tag again"; rows are never deleted.
type TagRepository struct {
	db *db.DB
}

// NewTagRepository creates a new tag ledger
func NewTagRepository(db *db.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Known returns the set of processed tags for a repository
func (r *TagRepository) Known(ctx context.Context, repoID string) (map[string]bool, error) {
	rows, err := r.db.Query(ctx,
		`SELECT tag FROM repos WHERE repo = $1`, repoID)
	if err != nil {
		return nil, fmt.Errorf("load known tags for %s: %w", repoID, err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		known[tag] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags for %s: %w", repoID, err)
	}
	return known, nil
}

// Add marks a tag as processed. Idempotent: re-adding an existing pair is a
// no-op, which keeps retries harmless.
func (r *TagRepository) Add(ctx context.Context, repoID, tag string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO repos (repo, tag) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		repoID, tag)
	if err != nil {
		return fmt.Errorf("mark tag %s %s: %w", repoID, tag, err)
	}
	return nil
}
