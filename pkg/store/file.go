// A directory-backed Store: every key maps to one file holding the raw value. Lookups for keys that were never
// written are answered by a bloom filter without touching the disk; the filter is rebuilt from the directory
// listing when the store is opened. Deleted keys stay in the filter, so a stale positive only costs one extra
// stat, never a wrong answer.

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const recordFileExt = ".rec"

// Sized for a single sync client; well above the record count any one device accumulates.
const (
	bloomExpectedKeys      = 100_000
	bloomFalsePositiveRate = 0.01
)

var _ Store = (*File)(nil)

// File persists key-value pairs as individual files under a data directory.
type File struct {
	mux    sync.RWMutex
	dir    string
	filter *bloom.BloomFilter
}

// NewFile opens (or creates) a file store rooted at `dir` and warms the bloom filter from the existing files.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("expected a non-empty data directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fileStore := &File{dir: dir, filter: bloom.NewWithEstimates(bloomExpectedKeys, bloomFalsePositiveRate)}
	keys, err := fileStore.Keys(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to list existing records: %w", err)
	}
	for _, key := range keys {
		fileStore.filter.AddString(key)
	}
	return fileStore, nil
}

// path maps a key to its backing file. Keys are escaped so arbitrary characters can't traverse out of the
// data directory; the escaping is reversible, which is what makes Keys() possible.
func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.QueryEscape(key)+recordFileExt)
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mux.RLock()
	defer f.mux.RUnlock()

	if !f.filter.TestString(key) { // Definitely never written.
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	value, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}
	return value, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mux.Lock()
	defer f.mux.Unlock()

	if err := os.WriteFile(f.path(key), value, 0o644); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}
	f.filter.AddString(key)
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mux.Lock()
	defer f.mux.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove record file: %w", err)
	}
	return nil
}

func (f *File) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list data directory: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordFileExt) {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSuffix(name, recordFileExt))
		if err != nil { // A foreign file that happens to carry our extension; skip it.
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (f *File) Close() error {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.filter.ClearAll()
	return nil
}
