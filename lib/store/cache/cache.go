package cache

import (
	"encoding/json"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

// Cache is a process local map from full key to the last known value.
// It is safe for concurrent use. Values are copied on the way in and out.
type Cache struct {
	name    string
	entries *xsync.MapOf[string, json.RawMessage]

	hits   *metrics.Counter
	misses *metrics.Counter
}

// New creates an empty cache. The name labels its metrics.
func New(name string) *Cache {
	if name == "" {
		name = "default"
	}
	return &Cache{
		name:    name,
		entries: xsync.NewMapOf[string, json.RawMessage](),
		hits:    metrics.GetOrCreateCounter(fmt.Sprintf(`kopi_cache_hits_total{cache=%q}`, name)),
		misses:  metrics.GetOrCreateCounter(fmt.Sprintf(`kopi_cache_misses_total{cache=%q}`, name)),
	}
}

// Name returns the name the cache was created with.
func (c *Cache) Name() string {
	return c.name
}

// Get returns a copy of the cached value for key.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		c.misses.Inc()
		return nil, false
	}
	c.hits.Inc()
	return append(json.RawMessage(nil), v...), true
}

// GetAll returns copies of the cached values for keys, but only if every key
// is cached. A complete lookup counts one hit per key, an incomplete one
// counts a single miss.
func (c *Cache) GetAll(keys []string) ([]json.RawMessage, bool) {
	values := make([]json.RawMessage, len(keys))
	for i, key := range keys {
		v, ok := c.entries.Load(key)
		if !ok {
			c.misses.Inc()
			return nil, false
		}
		values[i] = append(json.RawMessage(nil), v...)
	}
	c.hits.Add(len(keys))
	return values, true
}

// Set stores a copy of value under key.
func (c *Cache) Set(key string, value json.RawMessage) {
	c.entries.Store(key, append(json.RawMessage(nil), value...))
}

// Delete evicts all given keys.
func (c *Cache) Delete(keys ...string) {
	for _, key := range keys {
		c.entries.Delete(key)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Stats returns the hit and miss counts of this cache.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Get(), c.misses.Get()
}

// Clear evicts everything.
func (c *Cache) Clear() {
	c.entries.Clear()
}
