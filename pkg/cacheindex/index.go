// The cache index is the bookkeeping side of the sync handler: a single persisted list describing every record
// the handler has cached in the same store, under separate keys. The list carries one entry per record (key,
// creation timestamp, optional page-series group key) and is the sole source of truth for which record keys are
// live. Payload writes are the caller's job; the index only moves and deletes payloads by key.
//
// There is no locking and no transaction across store keys. Writers read the whole list, compute a new one and
// overwrite it, so two concurrent writers race last-writer-wins on the full list. That is acceptable for the
// single-owner store this was built for; see ClearAll for the recovery path when a bulk operation half-applies.

package cacheindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/DikiCook/wp-calypso/pkg/store"
	"github.com/DikiCook/wp-calypso/pkg/utils"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

// RecordsListKey is the store key the serialized index lives under.
const RecordsListKey = "records-list"

// RecordKeyPrefix starts every record payload key; ClearAll trusts this naming convention instead of the
// index bookkeeping, which lets it sweep up payloads orphaned by an earlier partial failure.
const RecordKeyPrefix = "sync-record-"

var recordKeyPattern = regexp.MustCompile(`^sync-record-\w+$`)

// IsRecordKey reports whether a store key names a cached record payload.
func IsRecordKey(key string) bool {
	return recordKeyPattern.MatchString(key)
}

var evictionsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_cache_evictions_total",
	Help: "The total number of index entries evicted, by reason.",
}, []string{"reason"})

const (
	evictionReasonPruned     = "pruned"
	evictionReasonPageSeries = "page_series"
	evictionReasonReset      = "reset"
)

// Entry describes one cached record. Timestamp is the insertion time of the entry in milliseconds since epoch,
// not the age of the record's content. GroupKey ties together entries belonging to the same paginated series
// and is empty for ungrouped records.
type Entry struct {
	Key       string `json:"key"`
	Timestamp int64  `json:"timestamp"`
	GroupKey  string `json:"group_key,omitempty"`
}

// Partition is the result of splitting the index by age: Removed holds the entries past their lifetime,
// Retained the complement. Computing a Partition has no side effects; feeding it to RemoveList does.
type Partition struct {
	Removed  []Entry
	Retained []Entry
}

// GroupKeyFunc derives the group fingerprint for a set of request parameters. It must be deterministic and must
// map all pages of one logical series to the same value.
type GroupKeyFunc func(params map[string]string) string

// CacheIndex maintains the persisted record index on top of an injected Store.
type CacheIndex struct {
	store    store.Store
	groupKey GroupKeyFunc
	now      func() time.Time
}

type Option func(*CacheIndex)

// WithGroupKeyFunc overrides the page-series fingerprint function.
func WithGroupKeyFunc(fn GroupKeyFunc) Option {
	return func(c *CacheIndex) {
		if fn != nil {
			c.groupKey = fn
		}
	}
}

// WithClock overrides the time source; tests use this to age entries deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *CacheIndex) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a CacheIndex over the given store. The default group-key function is PageSeriesKey.
func New(st store.Store, opts ...Option) (*CacheIndex, error) {
	if st == nil {
		return nil, errors.New("expected a non-nil store")
	}
	cacheIndex := &CacheIndex{store: st, groupKey: PageSeriesKey, now: time.Now}
	for _, opt := range opts {
		opt(cacheIndex)
	}
	return cacheIndex, nil
}

// GroupKey derives the page-series fingerprint for `params` using the injected derivation function. Exposed so
// callers registering records can tag them with the same fingerprint ClearPageSeries will later look for.
func (c *CacheIndex) GroupKey(params map[string]string) string {
	return c.groupKey(params)
}

// GetAll returns the current index. An index that was never written reads as empty, not as an error.
func (c *CacheIndex) GetAll(ctx context.Context) ([]Entry, error) {
	raw, err := c.store.Get(ctx, RecordsListKey)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read records list: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode records list: %w", err)
	}
	return entries, nil
}

// GetAllExcluding returns the index with any entry for `key` filtered out. It does not mutate storage; write
// operations use it to enforce the one-entry-per-key invariant.
func (c *CacheIndex) GetAllExcluding(ctx context.Context, key string) ([]Entry, error) {
	entries, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	remaining := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Key != key {
			remaining = append(remaining, entry)
		}
	}
	return remaining, nil
}

func (c *CacheIndex) persist(ctx context.Context, entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode records list: %w", err)
	}
	if err := c.store.Set(ctx, RecordsListKey, raw); err != nil {
		return fmt.Errorf("failed to write records list: %w", err)
	}
	return nil
}

// Add registers a cached record under `key`, replacing any previous entry for the same key and refreshing its
// timestamp. An empty `groupKey` marks the record as ungrouped. The record payload itself is not written here.
func (c *CacheIndex) Add(ctx context.Context, key, groupKey string) error {
	if key == "" {
		return errors.New("expected a non-empty record key")
	}
	entries, err := c.GetAllExcluding(ctx, key)
	if err != nil {
		return err
	}
	entries = append(entries, Entry{Key: key, Timestamp: c.now().UnixMilli(), GroupKey: groupKey})
	return c.persist(ctx, entries)
}

// Remove drops the index entry for `key`. Removing a key that has no entry is a no-op. The payload stored under
// `key` is intentionally left in place; bulk eviction paths are the ones that delete payloads.
func (c *CacheIndex) Remove(ctx context.Context, key string) error {
	entries, err := c.GetAllExcluding(ctx, key)
	if err != nil {
		return err
	}
	return c.persist(ctx, entries)
}

// DropOlderThan partitions the index into entries whose age exceeds `lifetime` and the rest. Pure read; storage
// is untouched until the result is handed to RemoveList.
func (c *CacheIndex) DropOlderThan(ctx context.Context, lifetime time.Duration) (Partition, error) {
	entries, err := c.GetAll(ctx)
	if err != nil {
		return Partition{}, err
	}

	nowMs := c.now().UnixMilli()
	partition := Partition{}
	for _, entry := range entries {
		if nowMs-entry.Timestamp > lifetime.Milliseconds() {
			partition.Removed = append(partition.Removed, entry)
		} else {
			partition.Retained = append(partition.Retained, entry)
		}
	}
	return partition, nil
}

// Prune evicts every record older than `lifetime`, deleting the payloads and rewriting the index. A
// non-positive lifetime falls back to DefaultLifetime. This is the scheduled-maintenance entry point.
func (c *CacheIndex) Prune(ctx context.Context, lifetime time.Duration) error {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	partition, err := c.DropOlderThan(ctx, lifetime)
	if err != nil {
		return err
	}
	return c.removeList(ctx, partition, evictionReasonPruned)
}

// RemoveList deletes the payload of every entry in `partition.Removed` and persists `partition.Retained` as the
// new index. The deletions and the index rewrite are issued concurrently; the call returns once all of them
// have settled and surfaces the first failure. Already-applied deletions are not rolled back, so a partial
// failure can leave orphaned payloads (or index entries without payloads) behind; ClearAll cleans those up.
func (c *CacheIndex) RemoveList(ctx context.Context, partition Partition) error {
	return c.removeList(ctx, partition, evictionReasonPruned)
}

func (c *CacheIndex) removeList(ctx context.Context, partition Partition, reason string) error {
	if len(partition.Removed) == 0 {
		slog.Debug("No records to evict.", "retained", len(partition.Retained), "reason", reason)
		return nil
	}

	var group errgroup.Group
	for _, entry := range partition.Removed {
		if entry.Key == "" {
			utils.RaiseInvariant("cacheindex", "empty_removed_record_key",
				"Got an empty record key in a removal list.", "reason", reason)
			continue
		}
		group.Go(func() error { return c.store.Delete(ctx, entry.Key) })
	}
	group.Go(func() error { return c.persist(ctx, partition.Retained) })
	if err := group.Wait(); err != nil {
		return fmt.Errorf("failed to evict records: %w", err)
	}

	evictionsMetric.WithLabelValues(reason).Add(float64(len(partition.Removed)))
	slog.Debug("Evicted records.", "removed", len(partition.Removed), "retained", len(partition.Retained),
		"reason", reason)
	return nil
}

// ClearPageSeries evicts every cached page of the series identified by `requestParams`: the params are
// fingerprinted with the page cursor excluded, and all entries carrying that group key are removed along with
// their payloads. Ungrouped entries never match.
func (c *CacheIndex) ClearPageSeries(ctx context.Context, requestParams map[string]string) error {
	groupKey := c.groupKey(requestParams)
	if groupKey == "" {
		utils.RaiseInvariant("cacheindex", "empty_page_series_key",
			"Group key derivation returned an empty fingerprint.")
		return errors.New("derived an empty page series key")
	}

	entries, err := c.GetAll(ctx)
	if err != nil {
		return err
	}
	partition := Partition{}
	for _, entry := range entries {
		if entry.GroupKey == groupKey {
			partition.Removed = append(partition.Removed, entry)
		} else {
			partition.Retained = append(partition.Retained, entry)
		}
	}
	return c.removeList(ctx, partition, evictionReasonPageSeries)
}

// ClearAll hard-resets the cache: every store key matching the record naming convention is deleted, plus the
// index key itself. Unrelated store keys are left untouched. Because the scan trusts key names rather than the
// index, it also removes payloads the index lost track of.
func (c *CacheIndex) ClearAll(ctx context.Context) error {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list store keys: %w", err)
	}

	var group errgroup.Group
	cleared := 0
	for _, key := range keys {
		if !IsRecordKey(key) {
			continue
		}
		cleared++
		group.Go(func() error { return c.store.Delete(ctx, key) })
	}
	group.Go(func() error { return c.store.Delete(ctx, RecordsListKey) })
	if err := group.Wait(); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	evictionsMetric.WithLabelValues(evictionReasonReset).Add(float64(cleared))
	slog.Info("Cleared all cached records.", "removed", cleared)
	return nil
}
