package facetcache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryKV is a process-local KV backend with per-entry expiration.
type MemoryKV struct {
	store *gocache.Cache
}

// NewMemoryKV creates an in-process backend. Expired entries are swept
// every minute on top of lazy expiration on read.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{store: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *MemoryKV) Get(key string) ([]byte, bool) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, false
	}
	raw, ok := v.([]byte)
	return raw, ok
}

func (m *MemoryKV) Set(key string, value []byte, ttl time.Duration) {
	m.store.Set(key, value, ttl)
}

func (m *MemoryKV) Delete(key string) {
	m.store.Delete(key)
}

func (m *MemoryKV) Keys() []string {
	items := m.store.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys
}
