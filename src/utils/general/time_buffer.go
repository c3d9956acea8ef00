package general

import (
	"sync"
	"time"
)

type expiringEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// ExpiringCache is a keyed cache whose entries carry their own TTL. Expired
// entries are dropped lazily on Get and in bulk by Sweep.
type ExpiringCache[K comparable, V any] struct {
	entries map[K]expiringEntry[V]
	now     func() time.Time
	mutex   sync.RWMutex
}

func NewExpiringCache[K comparable, V any](now func() time.Time) *ExpiringCache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &ExpiringCache[K, V]{
		entries: make(map[K]expiringEntry[V]),
		now:     now,
	}
}

func (c *ExpiringCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[key] = expiringEntry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *ExpiringCache[K, V]) Get(key K) (V, bool) {
	c.mutex.RLock()
	entry, ok := c.entries[key]
	c.mutex.RUnlock()

	var zeroValue V
	if !ok {
		return zeroValue, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.mutex.Lock()
		// re-check, a concurrent Set may have refreshed it
		if current, still := c.entries[key]; still && !c.now().Before(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mutex.Unlock()
		return zeroValue, false
	}
	return entry.value, true
}

func (c *ExpiringCache[K, V]) Has(key K) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *ExpiringCache[K, V]) Delete(key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, key)
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *ExpiringCache[K, V]) Sweep() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := c.now()
	dropped := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

func (c *ExpiringCache[K, V]) GetSize() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}
