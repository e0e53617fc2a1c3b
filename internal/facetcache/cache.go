// Package facetcache caches the expensive aggregate portions of a search
// response (facets, stats, buckets) keyed by the filter combination that
// produced them. Cache failures are never surfaced to callers: a miss or
// a broken entry just means the aggregates get recomputed.
package facetcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smashj-dev/car-search-platform/internal/search"
)

const (
	keyPrefix        = "facets:"
	filterOptionsKey = "filter_options"

	// DefaultTTL bounds how stale cached aggregates may get while the
	// listing inventory churns underneath them.
	DefaultTTL = 5 * time.Minute

	// FilterOptionsTTL covers the unfiltered option lists, which change
	// far slower than per-filter aggregates.
	FilterOptionsTTL = 15 * time.Minute
)

// KV is the minimal key/value surface the cache needs. The process-local
// implementation lives in kv.go; a shared backend can replace it without
// touching the cache logic.
type KV interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
	Keys() []string
}

// Entry is the cached aggregate block of one search response.
type Entry struct {
	Facets   search.Facets   `json:"facets,omitempty"`
	Stats    *search.Stats   `json:"stats,omitempty"`
	Buckets  *search.Buckets `json:"buckets,omitempty"`
	CachedAt time.Time       `json:"cachedAt"`
}

// Cache stores aggregate search results with a bounded lifetime.
type Cache struct {
	kv     KV
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a Cache over the given KV backend. A non-positive ttl
// falls back to DefaultTTL.
func New(kv KV, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{kv: kv, ttl: ttl, now: time.Now, logger: logger}
}

// Key derives the cache key for a filter combination. Equivalent filter
// sets produce identical keys regardless of parameter order, and
// pagination or sort changes never alter the key.
func (c *Cache) Key(f search.Filters) string {
	fields := f.CacheFields()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "&")))
	return keyPrefix + hex.EncodeToString(sum[:])[:16]
}

// Get returns the cached entry for key, or ok=false on a miss. Entries
// older than the TTL are dropped even if the backend has not evicted
// them yet.
func (c *Cache) Get(key string) (Entry, bool) {
	raw, ok := c.kv.Get(key)
	if !ok {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		c.kv.Delete(key)
		return Entry{}, false
	}

	if c.now().Sub(entry.CachedAt) > c.ttl {
		c.kv.Delete(key)
		return Entry{}, false
	}

	return entry, true
}

// Set stores the aggregate block under key. Failures are logged and
// swallowed; caching is best effort.
func (c *Cache) Set(key string, entry Entry) {
	entry.CachedAt = c.now()

	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}

	c.kv.Set(key, raw, c.ttl)
}

// GetFilterOptions returns the cached filter-options payload, if any.
func (c *Cache) GetFilterOptions() (*search.FilterOptions, bool) {
	raw, ok := c.kv.Get(filterOptionsKey)
	if !ok {
		return nil, false
	}

	var opts search.FilterOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		c.logger.Warn().Err(err).Msg("dropping undecodable filter options entry")
		c.kv.Delete(filterOptionsKey)
		return nil, false
	}

	return &opts, true
}

// SetFilterOptions caches the filter-options payload.
func (c *Cache) SetFilterOptions(opts *search.FilterOptions) {
	raw, err := json.Marshal(opts)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode filter options")
		return
	}

	c.kv.Set(filterOptionsKey, raw, FilterOptionsTTL)
}

// InvalidateAll removes every cached aggregate entry and the cached
// filter options, and returns the number of entries removed. Callers use
// it after bulk inventory updates.
func (c *Cache) InvalidateAll() int {
	removed := 0
	for _, key := range c.kv.Keys() {
		if strings.HasPrefix(key, keyPrefix) {
			c.kv.Delete(key)
			removed++
		}
	}

	if _, ok := c.kv.Get(filterOptionsKey); ok {
		c.kv.Delete(filterOptionsKey)
		removed++
	}

	return removed
}
