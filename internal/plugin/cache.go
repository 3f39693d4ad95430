package plugin

import "sync"

// Cache is a string cache owned by the engine and shared with an extension
// for the lifetime of the engine.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Caches is a set of named caches.
type Caches struct {
	mu     sync.Mutex
	byName map[string]*Cache
}

// NewCaches creates an empty cache set.
func NewCaches() *Caches {
	return &Caches{byName: make(map[string]*Cache)}
}

// Get returns the cache for name, creating it on first use.
func (c *Caches) Get(name string) *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	cache, ok := c.byName[name]
	if !ok {
		cache = NewCache()
		c.byName[name] = cache
	}
	return cache
}
