// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/facematch/internal/storage"
)

// Run exercises a fresh store returned by makeStore for every sub-test.
func Run(t *testing.T, makeStore func(t *testing.T) storage.Store) {
	t.Run("get of a missing key returns ErrNotFound", func(t *testing.T) {
		s := makeStore(t)

		_, err := s.Get(context.Background(), "missing")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("set then get returns the whole value", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", []byte(`{"version":1}`)))
		require.NoError(t, s.Set(ctx, "k", []byte(`{"version":2}`)))

		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, `{"version":2}`, string(v))
	})

	t.Run("update sees nil for a missing key", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		var seen []byte
		called := false
		err := s.Update(ctx, "k", func(cur []byte) ([]byte, error) {
			seen, called = cur, true
			return []byte("1"), nil
		})
		require.NoError(t, err)
		require.True(t, called)
		assert.Nil(t, seen)

		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "1", string(v))
	})

	t.Run("update error leaves the value untouched", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "k", []byte("old")))

		boom := stderrors.New("boom")
		err := s.Update(ctx, "k", func(cur []byte) ([]byte, error) {
			return nil, boom
		})
		require.ErrorIs(t, err, boom)

		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "old", string(v))
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()

		const writers = 8
		var wg sync.WaitGroup
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Update(ctx, "counter", func(cur []byte) ([]byte, error) {
					n := 0
					if cur != nil {
						var err error
						if n, err = strconv.Atoi(string(cur)); err != nil {
							return nil, err
						}
					}
					return []byte(strconv.Itoa(n + 1)), nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		v, err := s.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(writers), string(v))
	})

	t.Run("delete removes the key and tolerates missing keys", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "k", []byte("v")))

		require.NoError(t, s.Delete(ctx, "k"))
		require.NoError(t, s.Delete(ctx, "k"))

		_, err := s.Get(ctx, "k")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
