package credcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "gh-token", "secret", 5*time.Minute))

	c, err := store.Get(ctx, "gh-token")
	require.NoError(t, err)
	assert.Equal(t, "secret", c.Value)
	assert.False(t, c.IsExpired())
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "expired", "val", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := store.Get(ctx, "expired")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.Set(ctx, "key", "val", 5*time.Minute)
	require.NoError(t, store.Delete(ctx, "key"))
	_, err := store.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "nope"))
}

func TestMemoryStore_OverwriteKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "key", "val1", 5*time.Minute)
	_ = store.Set(ctx, "key", "val2", 5*time.Minute)

	c, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "val2", c.Value)
}

func TestMemoryStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_ = store.Set(ctx, "fresh", "val", 5*time.Minute)
	_ = store.Set(ctx, "stale1", "val", time.Millisecond)
	_ = store.Set(ctx, "stale2", "val", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	count, err := store.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = store.Get(ctx, "fresh")
	assert.NoError(t, err)
}
