// All pages of one paginated request series must share a group key so they can be evicted together. The
// fingerprint below hashes the request parameters with the page cursor stripped out, which is exactly what
// makes requests that differ only in their cursor collapse onto the same key.

package cacheindex

import (
	"maps"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// pageHandleParam is the pagination cursor field; it is the one parameter excluded from the fingerprint.
const pageHandleParam = "page_handle"

// PageSeriesKey is the default GroupKeyFunc: a deterministic xxhash64 fingerprint over the sorted key=value
// pairs of `params`, with the page cursor excluded, rendered as hex.
func PageSeriesKey(params map[string]string) string {
	digest := xxhash.New()
	for _, key := range slices.Sorted(maps.Keys(params)) {
		if key == pageHandleParam {
			continue
		}
		// Writes on xxhash.Digest never fail.
		_, _ = digest.WriteString(key)
		_, _ = digest.WriteString("=")
		_, _ = digest.WriteString(params[key])
		_, _ = digest.WriteString("&")
	}
	return strconv.FormatUint(digest.Sum64(), 16)
}
