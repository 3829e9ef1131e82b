// Package views names the cached page views and owns their bounded-lifetime
// cache. Actions invalidate by view name; the action layer never knows about
// route strings.
package views

import (
	"strings"
	"sync"
	"time"
)

// View identifiers.
const (
	Dashboard      = "dashboard"
	Incidents      = "incidents"
	IncidentDetail = "incident_detail"
	Settings       = "settings"
)

// Invalidator is the slice of Cache the action layer depends on.
type Invalidator interface {
	Invalidate(names ...string)
}

type entry struct {
	value   any
	expires time.Time
}

// Cache holds rendered page payloads keyed by view name with a fixed TTL.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{entries: map[string]entry{}, ttl: ttl, now: time.Now}
}

func (c *Cache) Get(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok || c.now().After(e.expires) {
		delete(c.entries, name)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Put(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = entry{value: value, expires: c.now().Add(c.ttl)}
}

// Invalidate drops the named views. A name also covers its sub-entries
// ("incident_detail" clears every "incident_detail:<code>").
func (c *Cache) Invalidate(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		delete(c.entries, name)
		for key := range c.entries {
			if strings.HasPrefix(key, name+":") {
				delete(c.entries, key)
			}
		}
	}
}

var _ Invalidator = (*Cache)(nil)
