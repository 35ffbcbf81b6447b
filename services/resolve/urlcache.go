package resolve

import (
	"sync"
	"time"

	"tunebridge/models"
)

// StreamURLTTL is how long an extracted URL is trusted. The platform signs
// URLs with a short validity window; serving one past it returns 403s to the
// player, so expiry here must stay inside the platform's window.
const StreamURLTTL = 2 * time.Hour

// URLCache is the server-side ephemeral cache of video id to stream URL.
// Entries are valid while now - issuedAt < ttl and are never served after.
type URLCache struct {
	mu      sync.RWMutex
	entries map[string]models.StreamURLEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewURLCache creates a cache with the given TTL. A zero ttl means
// StreamURLTTL.
func NewURLCache(ttl time.Duration) *URLCache {
	if ttl <= 0 {
		ttl = StreamURLTTL
	}
	return &URLCache{
		entries: make(map[string]models.StreamURLEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached entry for a video id if it is still fresh. Expired
// entries are dropped on read.
func (c *URLCache) Get(videoID string) (models.StreamURLEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[videoID]
	c.mu.RUnlock()
	if !ok {
		return models.StreamURLEntry{}, false
	}

	if c.now().Sub(entry.IssuedAt) >= c.ttl {
		c.mu.Lock()
		// recheck under the write lock, a fresh Set may have raced
		if cur, ok := c.entries[videoID]; ok && c.now().Sub(cur.IssuedAt) >= c.ttl {
			delete(c.entries, videoID)
		}
		c.mu.Unlock()
		return models.StreamURLEntry{}, false
	}
	return entry, true
}

// Set stores an entry, replacing any previous one for the same video id.
func (c *URLCache) Set(entry models.StreamURLEntry) {
	if entry.VideoID == "" || entry.URL == "" {
		return
	}
	if entry.IssuedAt.IsZero() {
		entry.IssuedAt = c.now()
	}
	c.mu.Lock()
	c.entries[entry.VideoID] = entry
	c.mu.Unlock()
}

// Len reports the number of entries, fresh or not. For observability only.
func (c *URLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
