package prefetch

import (
	"sync"
	"time"

	"tunebridge/models"
)

// SessionCache holds the consumer-side caches for one listening session:
// catalog id to video id, and video id to stream URL. Entries are never
// pushed or invalidated by the server; readers treat anything older than the
// freshness window as stale and re-resolve.
type SessionCache struct {
	mu       sync.RWMutex
	videoIDs map[string]string
	streams  map[string]models.StreamURLEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionCache creates a session cache. A zero ttl matches the server's
// stream URL TTL policy.
func NewSessionCache(ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SessionCache{
		videoIDs: make(map[string]string),
		streams:  make(map[string]models.StreamURLEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// VideoID returns the cached video id for a catalog id. Id mappings do not
// go stale.
func (c *SessionCache) VideoID(catalogID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.videoIDs[catalogID]
	return id, ok
}

// SetVideoID records a catalog id to video id association.
func (c *SessionCache) SetVideoID(catalogID, videoID string) {
	if catalogID == "" || videoID == "" {
		return
	}
	c.mu.Lock()
	c.videoIDs[catalogID] = videoID
	c.mu.Unlock()
}

// StreamURL returns the cached stream URL for a video id if still fresh.
func (c *SessionCache) StreamURL(videoID string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.streams[videoID]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.IssuedAt) >= c.ttl {
		return "", false
	}
	return entry.URL, true
}

// SetStreamURL records a stream URL for a video id.
func (c *SessionCache) SetStreamURL(videoID, url string) {
	if videoID == "" || url == "" {
		return
	}
	c.mu.Lock()
	c.streams[videoID] = models.StreamURLEntry{VideoID: videoID, URL: url, IssuedAt: c.now()}
	c.mu.Unlock()
}
