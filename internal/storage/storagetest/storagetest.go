// Package storagetest содержит общий набор тестов, который проходит каждая реализация storage.Store.
// Так проверяется, что для вызывающей стороны бэкенды неотличимы.
package storagetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront-bot/internal/storage"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Run запускает набор тестов. newStore должен возвращать пустое хранилище.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		var out record
		found, err := s.Get(context.Background(), "things", "nope", &out)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("set and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "things", "a", record{Name: "alpha", Count: 1}))

		var out record
		found, err := s.Get(ctx, "things", "a", &out)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, record{Name: "alpha", Count: 1}, out)
	})

	t.Run("set overwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "things", "a", record{Name: "alpha", Count: 1}))
		require.NoError(t, s.Set(ctx, "things", "a", record{Name: "beta"}))

		var out record
		_, err := s.Get(ctx, "things", "a", &out)
		require.NoError(t, err)
		assert.Equal(t, record{Name: "beta"}, out)
	})

	t.Run("collections are isolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "left", "k", record{Name: "left"}))

		found, err := s.Get(ctx, "right", "k", &record{})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("merge upserts keys", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "things", "keep", record{Name: "keep"}))
		require.NoError(t, s.Set(ctx, "things", "a", record{Name: "old"}))

		require.NoError(t, s.Merge(ctx, "things", map[string]any{
			"a": record{Name: "new"},
			"b": record{Name: "bravo", Count: 2},
		}))

		all, err := storage.ScanAs[record](ctx, s, "things")
		require.NoError(t, err)
		assert.Equal(t, map[string]record{
			"keep": {Name: "keep"},
			"a":    {Name: "new"},
			"b":    {Name: "bravo", Count: 2},
		}, all)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "things", "a", record{Name: "alpha"}))
		require.NoError(t, s.Delete(ctx, "things", "a"))
		require.NoError(t, s.Delete(ctx, "things", "never-existed"))

		found, err := s.Get(ctx, "things", "a", &record{})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("scan empty collection", func(t *testing.T) {
		s := newStore(t)
		all, err := s.Scan(context.Background(), "empty")
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("set if absent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.SetIfAbsent(ctx, "things", "a", record{Name: "first"})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.SetIfAbsent(ctx, "things", "a", record{Name: "second"})
		require.NoError(t, err)
		assert.False(t, created)

		var out record
		_, err = s.Get(ctx, "things", "a", &out)
		require.NoError(t, err)
		assert.Equal(t, "first", out.Name)
	})

	t.Run("take removes record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "things", "a", record{Name: "alpha"}))

		var out record
		found, err := s.Take(ctx, "things", "a", &out)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "alpha", out.Name)

		found, err = s.Take(ctx, "things", "a", &out)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("concurrent set if absent creates once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var (
			wg      sync.WaitGroup
			created atomic.Int32
		)
		for i := range 16 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := s.SetIfAbsent(ctx, "things", "race", record{Count: i})
				assert.NoError(t, err)
				if ok {
					created.Add(1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), created.Load())
	})

	t.Run("concurrent take wins once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "things", "order", record{Name: "order"}))

		var (
			wg    sync.WaitGroup
			taken atomic.Int32
		)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.Take(ctx, "things", "order", &record{})
				assert.NoError(t, err)
				if ok {
					taken.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), taken.Load())
	})

	t.Run("backend name", func(t *testing.T) {
		s := newStore(t)
		assert.NotEmpty(t, s.Backend())
	})
}
