package port

import (
	"context"
	"testing"

	"github.com/DikiCook/wp-calypso/pkg/cacheindex"
	"github.com/DikiCook/wp-calypso/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) (*SyncBackend, *store.Memory) {
	t.Helper()
	memStore := store.NewMemory()
	index, err := cacheindex.New(memStore)
	require.NoError(t, err)
	backend, err := NewSyncBackend(memStore, index)
	require.NoError(t, err)
	return backend, memStore
}

func TestSyncBackend(t *testing.T) {
	ctx := context.Background()
	backend, memStore := newTestBackend(t)

	t.Run("put_record", func(t *testing.T) {
		require.NoError(t, backend.PutRecord(ctx, "sync-record-a", []byte("payload a"), nil /*requestParams*/))
		value, err := backend.GetRecord(ctx, "sync-record-a")
		assert.NoError(t, err)
		assert.Equal(t, []byte("payload a"), value)

		entries, err := backend.Index(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "sync-record-a", entries[0].Key)
		assert.Empty(t, entries[0].GroupKey, "A record stored without params is ungrouped")
	})
	t.Run("put_record_with_series", func(t *testing.T) {
		params := map[string]string{"type": "post", "page_handle": "2"}
		require.NoError(t, backend.PutRecord(ctx, "sync-record-b", []byte("payload b"), params))
		entries, err := backend.Index(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, cacheindex.PageSeriesKey(params), entries[1].GroupKey)
	})
	t.Run("put_record_rejects_foreign_keys", func(t *testing.T) {
		assert.Error(t, backend.PutRecord(ctx, "not-a-record", []byte("x"), nil))
	})
	t.Run("keys_with_glob", func(t *testing.T) {
		keys, err := backend.Keys(ctx, "sync-record-*")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"sync-record-a", "sync-record-b"}, keys)
	})
	t.Run("delete_record", func(t *testing.T) {
		require.NoError(t, backend.DeleteRecord(ctx, "sync-record-a"))
		_, err := backend.GetRecord(ctx, "sync-record-a")
		assert.ErrorIs(t, err, store.ErrKeyNotFound, "DeleteRecord removes the payload")
		entries, err := backend.Index(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "sync-record-b", entries[0].Key, "DeleteRecord removes the index entry")
	})
	t.Run("clear_series", func(t *testing.T) {
		// Same series as sync-record-b, different page cursor.
		require.NoError(t, backend.ClearSeries(ctx, map[string]string{"type": "post", "page_handle": "7"}))
		entries, err := backend.Index(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
		_, err = memStore.Get(ctx, "sync-record-b")
		assert.ErrorIs(t, err, store.ErrKeyNotFound)
	})
	t.Run("clear_all", func(t *testing.T) {
		require.NoError(t, backend.PutRecord(ctx, "sync-record-c", []byte("payload c"), nil))
		require.NoError(t, memStore.Set(ctx, "unrelated-key", []byte("keep me")))
		require.NoError(t, backend.ClearAll(ctx))
		keys, err := memStore.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"unrelated-key"}, keys)
	})
}

func TestNewSyncBackendValidation(t *testing.T) {
	memStore := store.NewMemory()
	index, err := cacheindex.New(memStore)
	require.NoError(t, err)

	_, err = NewSyncBackend(nil, index)
	assert.Error(t, err)
	_, err = NewSyncBackend(memStore, nil)
	assert.Error(t, err)
}
