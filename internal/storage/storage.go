// Package storage defines the key/value persistence used for leaderboards and high scores.
// Every write replaces a whole value; Update performs an atomic read-modify-write.
package storage

import (
	"context"
	stderrors "errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = stderrors.New("storage: key not found")

// UpdateFunc receives the current value, nil if the key does not exist, and returns the value
// to store. It may be called more than once when a backend retries on conflict, so it must not
// have side effects.
type UpdateFunc func(cur []byte) ([]byte, error)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error
	Close() error
}
