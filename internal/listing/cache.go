package listing

import (
	"sync"
	"time"

	"github.com/desertthunder/veechar/internal/models"
)

// TTL is how long a fetched folder listing stays fresh.
const TTL = 300 * time.Second

type entry struct {
	items      []models.AudioItem
	capturedAt time.Time
}

// Cache is a time-bounded, in-memory store of folder listings keyed by folder path.
//
// Expiry is lazy: an entry older than [TTL] is evicted by the Get that finds it. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// Option configures a [Cache].
type Option func(*Cache)

// WithClock replaces the wall clock used to stamp and age entries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{entries: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached items for path when present and younger than [TTL].
func (c *Cache) Get(path string) ([]models.AudioItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.capturedAt) > TTL {
		delete(c.entries, path)
		return nil, false
	}
	return cloneItems(e.items), true
}

// Put stores items for path, replacing any previous entry and restarting its clock.
func (c *Cache) Put(path string, items []models.AudioItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = entry{items: cloneItems(items), capturedAt: c.now()}
}

// Invalidate removes the entry for path. Missing paths are ignored.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cloneItems copies the slice so callers cannot mutate a cached listing.
func cloneItems(items []models.AudioItem) []models.AudioItem {
	if items == nil {
		return []models.AudioItem{}
	}
	out := make([]models.AudioItem, len(items))
	copy(out, items)
	return out
}
