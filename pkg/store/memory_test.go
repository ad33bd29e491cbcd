package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	memStore := NewMemory()

	t.Run("set_and_get", func(t *testing.T) {
		require.NoError(t, memStore.Set(ctx, "k1", []byte("v1")))
		value, err := memStore.Get(ctx, "k1")
		assert.NoError(t, err)
		assert.Equal(t, []byte("v1"), value)
	})
	t.Run("get_non_existent_key", func(t *testing.T) {
		_, err := memStore.Get(ctx, "non_existent")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
	t.Run("values_are_copied", func(t *testing.T) {
		original := []byte("mutable")
		require.NoError(t, memStore.Set(ctx, "k2", original))
		original[0] = 'X'
		value, err := memStore.Get(ctx, "k2")
		require.NoError(t, err)
		assert.Equal(t, []byte("mutable"), value)
	})
	t.Run("keys", func(t *testing.T) {
		keys, err := memStore.Keys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"k1", "k2"}, keys)
	})
	t.Run("delete", func(t *testing.T) {
		require.NoError(t, memStore.Delete(ctx, "k1"))
		_, err := memStore.Get(ctx, "k1")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
	t.Run("delete_non_existent_key", func(t *testing.T) {
		assert.NoError(t, memStore.Delete(ctx, "never_written"), "Deleting a missing key must be a no-op")
	})
}
