package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pluginsite/registry/common/db"
	"github.com/pluginsite/registry/common/models"
)

// ErrPluginNotFound is returned by operations that require an existing
// ownership row.
var ErrPluginNotFound = errors.New("plugin not found")

// PluginRepository is the ownership store plus the per-plugin meta counters
type PluginRepository struct {
	db *db.DB
}

// NewPluginRepository creates a new plugin repository
func NewPluginRepository(db *db.DB) *PluginRepository {
	return &PluginRepository{db: db}
}

// GetOwner returns the recorded owner of a plugin, or "" when the plugin is
// unclaimed.
func (r *PluginRepository) GetOwner(ctx context.Context, plugin string) (string, error) {
	var owner string
	err := r.db.QueryRow(ctx,
		`SELECT owner FROM plugins WHERE plugin = $1`, plugin).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get owner of %s: %w", plugin, err)
	}
	return owner, nil
}

// SetOwner claims a plugin for an owner. The primary key on plugin makes a
// second claim fail with a unique violation.
func (r *PluginRepository) SetOwner(ctx context.Context, plugin, owner, repo string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO plugins (plugin, owner, repo) VALUES ($1, $2, $3)`,
		plugin, owner, repo)
	if err != nil {
		return fmt.Errorf("set owner of %s: %w", plugin, err)
	}
	return nil
}

// GetOrSetOwner claims the plugin for owner if it is unclaimed, otherwise
// returns the existing owner. Safe under concurrent invocation for the same
// name: correctness rests entirely on the store's uniqueness constraint, not
// on any client-side locking.
func (r *PluginRepository) GetOrSetOwner(ctx context.Context, plugin, owner, repo string) (string, error) {
	err := r.SetOwner(ctx, plugin, owner, repo)
	if err == nil {
		return owner, nil
	}

	if isUniqueViolation(err) {
		return r.GetOwner(ctx, plugin)
	}

	return "", err
}

// Transfer reassigns a plugin to a new owner. Authorization happens outside
// the store; this is the mechanism only.
func (r *PluginRepository) Transfer(ctx context.Context, plugin, newOwner string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE plugins SET owner = $2 WHERE plugin = $1`, plugin, newOwner)
	if err != nil {
		return fmt.Errorf("transfer %s: %w", plugin, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transfer %s: %w", plugin, ErrPluginNotFound)
	}
	return nil
}

// UpdateRepoMeta refreshes the watcher/fork counters for every plugin
// released from a repository.
func (r *PluginRepository) UpdateRepoMeta(ctx context.Context, repoID string, meta models.RepoMeta) error {
	_, err := r.db.Exec(ctx,
		`UPDATE plugins SET watchers = $1, forks = $2 WHERE repo = $3`,
		meta.Watchers, meta.Forks, repoID)
	if err != nil {
		return fmt.Errorf("update meta for %s: %w", repoID, err)
	}
	return nil
}

// GetMeta returns the stored counters for a plugin
func (r *PluginRepository) GetMeta(ctx context.Context, plugin string) (models.RepoMeta, error) {
	var meta models.RepoMeta
	err := r.db.QueryRow(ctx,
		`SELECT watchers, forks FROM plugins WHERE plugin = $1`, plugin).
		Scan(&meta.Watchers, &meta.Forks)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RepoMeta{}, fmt.Errorf("get meta for %s: %w", plugin, ErrPluginNotFound)
	}
	if err != nil {
		return models.RepoMeta{}, fmt.Errorf("get meta for %s: %w", plugin, err)
	}
	return meta, nil
}
