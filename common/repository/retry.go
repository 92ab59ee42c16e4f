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

// RetryRepository is the durable retry queue. Failures are keyed by their
// call signature, so repeated failures of the same call collapse into a
// single row with an incremented try counter.
type RetryRepository struct {
	db *db.DB
}

// NewRetryRepository creates a new retry queue
func NewRetryRepository(db *db.DB) *RetryRepository {
	return &RetryRepository{db: db}
}

// Signature encodes a method name and its arguments into the queue key.
// Field order is fixed by the struct, so equal calls always produce equal
// keys.
func Signature(method string, args ...string) (string, error) {
	key, err := json.Marshal(struct {
		Method string   `json:"method"`
		Args   []string `json:"args"`
	}{Method: method, Args: args})
	if err != nil {
		return "", fmt.Errorf("encode retry signature for %s: %w", method, err)
	}
	return string(key), nil
}

// Log records a failed call. A first failure inserts a fresh row with zero
// tries; a repeat bumps the try counter and resets the timestamp, pushing
// the entry to the back of the queue.
func (r *RetryRepository) Log(ctx context.Context, method string, args ...string) error {
	key, err := Signature(method, args...)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO retry (retry) VALUES ($1)`, key)
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("log retry for %s: %w", method, err)
	}

	_, err = r.db.Exec(ctx,
		`UPDATE retry SET timestamp = now(), tries = tries + 1 WHERE retry = $1`, key)
	if err != nil {
		return fmt.Errorf("bump retry for %s: %w", method, err)
	}
	return nil
}

// OldestFailure returns the entry that has waited longest, or nil when the
// queue is empty.
func (r *RetryRepository) OldestFailure(ctx context.Context) (*models.Failure, error) {
	var (
		f   models.Failure
		sig struct {
			Method string   `json:"method"`
			Args   []string `json:"args"`
		}
	)

	err := r.db.QueryRow(ctx,
		`SELECT retry, timestamp, tries FROM retry ORDER BY timestamp ASC LIMIT 1`).
		Scan(&f.Signature, &f.Timestamp, &f.Tries)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read retry queue: %w", err)
	}

	if err := json.Unmarshal([]byte(f.Signature), &sig); err != nil {
		return nil, fmt.Errorf("decode retry signature %q: %w", f.Signature, err)
	}
	f.Method = sig.Method
	f.Args = sig.Args
	return &f, nil
}

// Remove drops a resolved entry from the queue
func (r *RetryRepository) Remove(ctx context.Context, signature string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM retry WHERE retry = $1`, signature)
	if err != nil {
		return fmt.Errorf("remove retry entry: %w", err)
	}
	return nil
}
