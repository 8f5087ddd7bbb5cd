// Package sqlite stores values in a local SQLite file, the server-side counterpart of a
// browser profile's local storage.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/victornm/facematch/internal/storage"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// A single connection serialises every transaction and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate creates the key/value table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS kv (
	key         TEXT PRIMARY KEY,
	value       BLOB NOT NULL,
	update_time DATETIME DEFAULT CURRENT_TIMESTAMP
)`

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	return get(ctx, s.db, key)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q querier, key string) ([]byte, error) {
	var v []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", key, err)
	}

	return v, nil
}

const upsertStmt = `
INSERT INTO kv (key, value, update_time) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, update_time = excluded.update_time`

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertStmt, key, value); err != nil {
		return fmt.Errorf("sqlite: set %s: %w", key, err)
	}

	return nil
}

func (s *Store) Update(ctx context.Context, key string, fn storage.UpdateFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback())
		}
	}()

	cur, err := get(ctx, tx, key)
	if stderrors.Is(err, storage.ErrNotFound) {
		cur, err = nil, nil
	}
	if err != nil {
		return err
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, upsertStmt, key, next); err != nil {
		return fmt.Errorf("sqlite: write %s: %w", key, err)
	}

	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", key, err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
