package cache

import (
	"sync"
	"time"

	"OptiBase/internal/domain/models"
)

type entry struct {
	buckets models.MasterBuckets
	exp     time.Time
}

// SnapshotCache keeps short-lived copies of master files for the monitor
// API, sparing the store one disk read per request. Entries expire lazily.
type SnapshotCache struct {
	ttl time.Duration
	mu  sync.RWMutex
	m   map[string]entry
}

// NewSnapshotCache creates a cache with the given TTL. A zero TTL never
// expires.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{ttl: ttl, m: make(map[string]entry)}
}

// Get returns the cached snapshot for key.
func (c *SnapshotCache) Get(key string) (models.MasterBuckets, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.buckets, true
}

// Set stores a snapshot under key.
func (c *SnapshotCache) Set(key string, buckets models.MasterBuckets) {
	var exp time.Time
	if c.ttl > 0 {
		exp = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{buckets: buckets, exp: exp}
	c.mu.Unlock()
}
