package port

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DikiCook/wp-calypso/pkg/cacheindex"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminHandler(t *testing.T) {
	ctx := context.Background()
	backend, memStore := newTestBackend(t)
	handler, err := NewAdminHandler(backend)
	require.NoError(t, err)

	t.Run("index_empty", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/index", nil))
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, "[]", recorder.Body.String(), "An empty index should serialize as an empty array")
	})
	t.Run("index_lists_entries", func(t *testing.T) {
		require.NoError(t, backend.PutRecord(ctx, "sync-record-a", []byte("payload"), nil))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/index", nil))
		require.Equal(t, http.StatusOK, recorder.Code)

		var entries []cacheindex.Entry
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "sync-record-a", entries[0].Key)
	})
	t.Run("prune", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder,
			httptest.NewRequest(http.MethodPost, "/maintenance/prune?lifetime=2+days", nil))
		assert.Equal(t, http.StatusNoContent, recorder.Code)
	})
	t.Run("prune_rejects_bad_lifetime", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder,
			httptest.NewRequest(http.MethodPost, "/maintenance/prune?lifetime=eventually", nil))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
	t.Run("clearseries_requires_params", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/maintenance/clearseries", nil))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
	t.Run("clearall", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/maintenance/clearall", nil))
		require.Equal(t, http.StatusNoContent, recorder.Code)
		keys, err := memStore.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
	t.Run("metrics", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "sync_cache_evictions_total")
	})
}
