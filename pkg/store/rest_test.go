package store

import (
	"context"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRecordService spins up a minimal in-memory record service speaking the REST store wire format.
func newRecordService(t *testing.T) *httptest.Server {
	t.Helper()
	var mux sync.Mutex
	records := make(map[string][]byte)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.Lock()
		defer mux.Unlock()

		if r.URL.Path == "/records" {
			keys := slices.Collect(maps.Keys(records))
			if keys == nil {
				keys = []string{}
			}
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(keys))
			return
		}

		key := strings.TrimPrefix(r.URL.Path, "/records/")
		switch r.Method {
		case http.MethodGet:
			value, exists := records[key]
			if !exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(value)
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			records[key] = body
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			if _, exists := records[key]; !exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(records, key)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRESTStore(t *testing.T) {
	ctx := context.Background()
	service := newRecordService(t)
	restStore, err := NewREST(service.URL)
	require.NoError(t, err)

	t.Run("set_and_get", func(t *testing.T) {
		require.NoError(t, restStore.Set(ctx, "sync-record-a", []byte("payload a")))
		value, err := restStore.Get(ctx, "sync-record-a")
		assert.NoError(t, err)
		assert.Equal(t, []byte("payload a"), value)
	})
	t.Run("get_non_existent_key", func(t *testing.T) {
		_, err := restStore.Get(ctx, "never_written")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
	t.Run("keys", func(t *testing.T) {
		require.NoError(t, restStore.Set(ctx, "records-list", []byte("index")))
		keys, err := restStore.Keys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"sync-record-a", "records-list"}, keys)
	})
	t.Run("delete", func(t *testing.T) {
		require.NoError(t, restStore.Delete(ctx, "sync-record-a"))
		_, err := restStore.Get(ctx, "sync-record-a")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
	t.Run("delete_non_existent_key", func(t *testing.T) {
		assert.NoError(t, restStore.Delete(ctx, "never_written"), "A 404 on delete means already gone, not a failure")
	})
	t.Run("rejects_empty_base_url", func(t *testing.T) {
		_, err := NewREST("")
		assert.Error(t, err)
	})
}
