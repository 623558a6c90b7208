package conditional

import (
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultResponseCacheSize bounds the number of views kept in process.
const DefaultResponseCacheSize = 1024

// Entry is one captured view: the envelope's data and message, and the
// registry stamp the view was produced under.
type Entry struct {
	Data    json.RawMessage
	Message string
	Stamp   int64
}

// ResponseCache is the in-process cache of computed views, keyed like the
// freshness registry. Least recently used views are evicted first.
type ResponseCache struct {
	entries *lru.Cache[string, Entry]
}

// NewResponseCache creates a cache holding at most size views.
func NewResponseCache(size int) (*ResponseCache, error) {
	if size <= 0 {
		size = DefaultResponseCacheSize
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}
	return &ResponseCache{entries: entries}, nil
}

// Get returns the view cached under key.
func (c *ResponseCache) Get(key string) (Entry, bool) {
	return c.entries.Get(key)
}

// Add stores a view, replacing any previous one.
func (c *ResponseCache) Add(key string, e Entry) {
	c.entries.Add(key, e)
}

// Remove drops the view cached under key.
func (c *ResponseCache) Remove(key string) {
	c.entries.Remove(key)
}

// Len returns the number of cached views.
func (c *ResponseCache) Len() int {
	return c.entries.Len()
}

// Purge drops every view.
func (c *ResponseCache) Purge() {
	c.entries.Purge()
}
