package scope

import (
	"sync"
	"time"
)

// Cache is the per-agent scope cache. It is the only cross-request shared
// mutable state in the service, keyed by agent id with a short TTL.
// Expiry is the only invalidation path in normal operation; callers must
// tolerate staleness up to the TTL after an assignment change.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	scope     Scope
	expiresAt time.Time
}

// DefaultTTL matches the resolver contract: staleness bounded to minutes
const DefaultTTL = 5 * time.Minute

// NewCache creates a cache with the given TTL and clock. A nil clock uses
// time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached scope for the agent if present and unexpired
func (c *Cache) Get(agentID string) (Scope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[agentID]
	if !ok {
		return Scope{}, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, agentID)
		return Scope{}, false
	}
	return e.scope, true
}

// Put stores the scope for the agent until the TTL elapses
func (c *Cache) Put(agentID string, sc Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[agentID] = cacheEntry{scope: sc, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops the cached scope for one agent. Exposed for the admin
// collaborator to call after assignment changes when TTL staleness is not
// acceptable.
func (c *Cache) Invalidate(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, agentID)
}

// Len reports the number of live entries (expired ones included until read)
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
