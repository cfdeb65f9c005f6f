package storystore

import (
	"sync"
	"time"
)

// documentCache keeps the serialized bytes of recently loaded, fully
// migrated documents. Caching bytes rather than decoded documents means
// every caller gets its own decode and no pointer is ever shared.
type documentCache struct {
	mu    sync.RWMutex
	items map[string]cacheEntry
	ttl   time.Duration
	done  chan struct{}
}

type cacheEntry struct {
	raw       []byte
	expiresAt time.Time
}

func newDocumentCache(ttl time.Duration) *documentCache {
	c := &documentCache{
		items: make(map[string]cacheEntry),
		ttl:   ttl,
		done:  make(chan struct{}),
	}
	go c.cleanupExpired()
	return c
}

// close stops the cleanup goroutine
func (c *documentCache) close() {
	close(c.done)
}

func (c *documentCache) get(storyID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.items[storyID]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.raw, true
}

func (c *documentCache) set(storyID string, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[storyID] = cacheEntry{
		raw:       raw,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *documentCache) invalidate(storyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, storyID)
}

func (c *documentCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheEntry)
}

func (c *documentCache) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.items {
				if now.After(entry.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}
