// Package postgres stores values in a single key/value table.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/facematch/internal/storage"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate creates the key/value table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS kv (
	key         TEXT PRIMARY KEY,
	value       BYTEA NOT NULL,
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := s.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	const stmt = `SELECT value FROM kv WHERE key = $1;`

	var v []byte
	err := s.db.QueryRow(ctx, stmt, key).Scan(&v)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", key, err)
	}

	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.Exec(ctx, upsertStmt, key, value); err != nil {
		return fmt.Errorf("postgres: set %s: %w", key, err)
	}

	return nil
}

const upsertStmt = `
INSERT INTO kv (key, value, update_time) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, update_time = EXCLUDED.update_time;`

// Update locks the key with a transaction-scoped advisory lock so that concurrent writers,
// including the first writer of a missing key, are serialised.
func (s *Store) Update(ctx context.Context, key string, fn storage.UpdateFunc) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		lockStmt   = `SELECT pg_advisory_xact_lock(hashtext($1));`
		selectStmt = `SELECT value FROM kv WHERE key = $1;`
	)

	if _, err = tx.Exec(ctx, lockStmt, key); err != nil {
		return fmt.Errorf("postgres: lock %s: %w", key, err)
	}

	var cur []byte
	err = tx.QueryRow(ctx, selectStmt, key).Scan(&cur)
	if stderrors.Is(err, pgx.ErrNoRows) {
		cur, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("postgres: read %s: %w", key, err)
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, upsertStmt, key, next); err != nil {
		return fmt.Errorf("postgres: write %s: %w", key, err)
	}

	return tx.Commit(ctx)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM kv WHERE key = $1;`, key); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", key, err)
	}

	return nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}
