// SyncBackend is the storage backend used by the sync-handler ports (Redis protocol, admin HTTP). It couples
// one persistent store with the cache index kept in that store, so that registering a record writes its payload
// and its index entry through one call.

package port

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/DikiCook/wp-calypso/pkg/cacheindex"
	"github.com/DikiCook/wp-calypso/pkg/scan"
	"github.com/DikiCook/wp-calypso/pkg/store"
)

type SyncBackend struct {
	store store.Store
	index *cacheindex.CacheIndex
}

// NewSyncBackend wires a store and the cache index living in it together.
func NewSyncBackend(st store.Store, index *cacheindex.CacheIndex) (*SyncBackend, error) {
	if st == nil {
		return nil, errors.New("expected a non-nil storage")
	}
	if index == nil {
		return nil, errors.New("expected a non-nil cache index")
	}
	return &SyncBackend{store: st, index: index}, nil
}

// PutRecord stores `payload` under `key` and registers the key in the index. When `requestParams` is non-empty
// the entry is tagged with the page-series fingerprint of those params, making it eligible for ClearSeries.
// There is no transaction across the two writes; a failure in between leaves either an unindexed payload or
// an index entry without payload, both of which ClearAll recovers from.
func (sb *SyncBackend) PutRecord(ctx context.Context, key string, payload []byte,
	requestParams map[string]string) error {
	if !cacheindex.IsRecordKey(key) {
		return fmt.Errorf("key %q doesn't match the record naming convention", key)
	}
	var groupKey string
	if len(requestParams) > 0 {
		groupKey = sb.index.GroupKey(requestParams)
	}
	if err := sb.store.Set(ctx, key, payload); err != nil {
		return fmt.Errorf("failed to store record payload: %w", err)
	}
	return sb.index.Add(ctx, key, groupKey)
}

// GetRecord returns the payload stored under `key`, or an error wrapping store.ErrKeyNotFound.
func (sb *SyncBackend) GetRecord(ctx context.Context, key string) ([]byte, error) {
	return sb.store.Get(ctx, key)
}

// DeleteRecord removes both the payload and the index entry of `key`. This is the caller-side companion to
// the index's Remove, which by itself leaves the payload behind.
func (sb *SyncBackend) DeleteRecord(ctx context.Context, key string) error {
	if err := sb.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete record payload: %w", err)
	}
	return sb.index.Remove(ctx, key)
}

// Keys lists the store keys matching the given glob pattern.
func (sb *SyncBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := sb.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Collect(scan.MatchGlob(pattern, slices.Values(keys))), nil
}

// Index returns the current record index.
func (sb *SyncBackend) Index(ctx context.Context) ([]cacheindex.Entry, error) {
	return sb.index.GetAll(ctx)
}

// Prune evicts records older than `lifetime`; zero falls back to the default lifetime.
func (sb *SyncBackend) Prune(ctx context.Context, lifetime time.Duration) error {
	return sb.index.Prune(ctx, lifetime)
}

// ClearSeries evicts every cached page of the series identified by `requestParams`.
func (sb *SyncBackend) ClearSeries(ctx context.Context, requestParams map[string]string) error {
	return sb.index.ClearPageSeries(ctx, requestParams)
}

// ClearAll hard-resets the cache ahead of a full re-synchronization.
func (sb *SyncBackend) ClearAll(ctx context.Context) error {
	return sb.index.ClearAll(ctx)
}

func (sb *SyncBackend) Close() error {
	return sb.store.Close()
}
