// Package redis stores values as plain Redis strings. Update uses WATCH/MULTI/EXEC and retries
// when another client changed the key in between.
package redis

import (
	"context"
	stderrors "errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/victornm/facematch/internal/storage"
)

const maxRetries = 10

type Store struct {
	rc goredis.UniversalClient
}

func New(rc goredis.UniversalClient) *Store {
	return &Store{rc: rc}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rc.Get(ctx, key).Bytes()
	if stderrors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}

	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rc.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}

	return nil
}

func (s *Store) Update(ctx context.Context, key string, fn storage.UpdateFunc) error {
	txf := func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if stderrors.Is(err, goredis.Nil) {
			cur = nil
		} else if err != nil {
			return err
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for range maxRetries {
		err := s.rc.Watch(ctx, txf, key)
		if stderrors.Is(err, goredis.TxFailedErr) {
			continue
		}

		if err != nil {
			return fmt.Errorf("redis: update %s: %w", key, err)
		}

		return nil
	}

	return fmt.Errorf("redis: update %s: gave up after %d conflicting writes", key, maxRetries)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rc.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}

	return nil
}

// Close is a no-op: the client is owned by whoever created it.
func (*Store) Close() error { return nil }
