// Package cache memoizes read-path responses for a short TTL.
//
// Every mutation clears the whole cache. Clearing also bumps a generation
// counter; a reader samples the generation before it queries storage and
// passes it back to Set, which refuses to store a result computed before
// the most recent Clear.
package cache

import (
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type Cache struct {
	mu    sync.Mutex
	gen   atomic.Uint64
	ttl   time.Duration
	items *gocache.Cache
	now   func() time.Time
}

// New returns an empty cache whose entries expire ttl after being stored.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:   ttl,
		items: gocache.New(ttl, 2*ttl),
		now:   time.Now,
	}
}

// Key builds a canonical key for an endpoint and its normalized parameters.
// url.Values encodes in sorted key order, so parameter order never matters.
func Key(endpoint string, params url.Values) string {
	return endpoint + "?" + params.Encode()
}

// Generation identifies the current invalidation epoch.
func (c *Cache) Generation() uint64 {
	return c.gen.Load()
}

// Get returns the value stored under key if it is younger than the TTL. An
// entry whose age has reached the TTL is evicted.
func (c *Cache) Get(key string) (interface{}, bool) {
	v, exp, found := c.items.GetWithExpiration(key)
	if !found || !c.now().Before(exp) {
		c.items.Delete(key)
		return nil, false
	}
	return v, true
}

// Set stores value under key if no Clear happened since gen was sampled.
// It reports whether the value was stored.
func (c *Cache) Set(gen uint64, key string, value interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen.Load() {
		return false
	}
	c.items.Set(key, value, c.ttl)
	return true
}

// Clear drops every entry and starts a new generation.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.gen.Add(1)
	c.items.Flush()
	c.mu.Unlock()
}

// Len is the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}
