package resolve

import (
	"sync"
	"time"
)

// NegativeTTL is how long terminal failures (no match, restricted, gone) are
// remembered. Materially shorter than the positive mapping (permanent) and
// stream URL TTLs: an unresolvable track occasionally becomes resolvable
// when the platform's inventory changes.
const NegativeTTL = 15 * time.Minute

type negEntry struct {
	err error
	at  time.Time
}

// negativeCache remembers terminal resolution failures so repeated requests
// for an unresolvable track do not hammer the external services.
type negativeCache struct {
	mu      sync.Mutex
	entries map[string]negEntry
	ttl     time.Duration
	now     func() time.Time
}

func newNegativeCache(ttl time.Duration) *negativeCache {
	if ttl <= 0 {
		ttl = NegativeTTL
	}
	return &negativeCache{
		entries: make(map[string]negEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *negativeCache) get(key string) (error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.at) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.err, true
}

func (c *negativeCache) set(key string, err error) {
	c.mu.Lock()
	c.entries[key] = negEntry{err: err, at: c.now()}
	c.mu.Unlock()
}
