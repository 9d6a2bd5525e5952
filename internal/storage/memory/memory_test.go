package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
	"github.com/magabrotheeeer/storefront-bot/internal/storage/storagetest"
)

func TestStore_Contract(t *testing.T) {
	storagetest.Run(t, func(_ *testing.T) storage.Store {
		return New()
	})
}

func TestStore_NotDurable(t *testing.T) {
	s := New()
	assert.False(t, s.Durable())
	assert.Equal(t, "memory", s.Backend())
	assert.NoError(t, s.Close())
}

func TestStore_ScanReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "c", "k", map[string]string{"a": "b"}))

	all, err := s.Scan(ctx, "c")
	require.NoError(t, err)
	all["k"][0] = 'X'

	var out map[string]string
	found, err := s.Get(ctx, "c", "k", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", out["a"])
}

func TestStore_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := map[string]func() error{
		"Get":         func() error { _, err := s.Get(ctx, "c", "k", nil); return err },
		"Set":         func() error { return s.Set(ctx, "c", "k", 1) },
		"Merge":       func() error { return s.Merge(ctx, "c", map[string]any{"k": 1}) },
		"Delete":      func() error { return s.Delete(ctx, "c", "k") },
		"Scan":        func() error { _, err := s.Scan(ctx, "c"); return err },
		"SetIfAbsent": func() error { _, err := s.SetIfAbsent(ctx, "c", "k", 1); return err },
		"Take":        func() error { _, err := s.Take(ctx, "c", "k", nil); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			assert.ErrorIs(t, err, errs.ErrStorageUnavailable)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}
