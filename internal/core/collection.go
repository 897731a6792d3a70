package core

import (
	"sort"
	"sync"
)

// Collection is the in-memory owner of the resident subscription set.
//
// Every mutation bumps a monotonically increasing version counter; aggregate
// consumers read the version at the start of a pass and recompute only when
// it changed since their last cached result. This replaces reactive
// publish/subscribe wiring with an explicit, testable invalidation signal.
type Collection struct {
	mu      sync.RWMutex
	version uint64
	items   map[string]Subscription
}

func NewCollection() *Collection {
	return &Collection{items: make(map[string]Subscription)}
}

// Load replaces the whole collection, typically from storage at startup.
func (c *Collection) Load(subs []Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]Subscription, len(subs))
	for _, s := range subs {
		c.items[s.ID] = s.Clone()
	}
	c.version++
}

// Put inserts or replaces a subscription.
func (c *Collection) Put(s Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[s.ID] = s.Clone()
	c.version++
}

// Remove deletes a subscription and reports whether it was present. The
// version is bumped only on an actual removal.
func (c *Collection) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	c.version++
	return true
}

// Get returns a copy of the subscription with the given ID.
func (c *Collection) Get(id string) (Subscription, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.items[id]
	if !ok {
		return Subscription{}, false
	}
	return s.Clone(), true
}

// Snapshot returns an immutable copy of the current subscription set,
// ordered by name then ID for stable iteration.
func (c *Collection) Snapshot() []Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Subscription, 0, len(c.items))
	for _, s := range c.items {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Version returns the current mutation counter.
func (c *Collection) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Len returns the number of resident subscriptions.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
