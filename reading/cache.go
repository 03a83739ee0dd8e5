package reading

import "sync"

type cacheKey struct {
	deviceID string
	kind     Kind
}

// Cache holds the most recent reading per (device, kind). It is shared
// between the polling producer and any number of readers; reads proceed in
// parallel, updates are exclusive. No I/O happens while a lock is held.
//
// An update always wins by arrival order. A delayed poll carrying an older
// recorded_at therefore overwrites a newer entry; consumers that care about
// staleness must check recorded_at themselves.
type Cache struct {
	mutex   sync.RWMutex
	entries map[cacheKey]Reading
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: map[cacheKey]Reading{}}
}

// Update replaces the cached reading for (reading.DeviceID, reading.Kind).
func (c *Cache) Update(r Reading) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[cacheKey{deviceID: r.DeviceID, kind: r.Kind}] = r
}

// Get returns the latest reading for a (device, kind), if present.
func (c *Cache) Get(deviceID string, kind Kind) (Reading, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	r, ok := c.entries[cacheKey{deviceID: deviceID, kind: kind}]
	return r, ok
}

// All returns a point-in-time snapshot of every cached reading.
func (c *Cache) All() []Reading {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	all := make([]Reading, 0, len(c.entries))
	for _, r := range c.entries {
		all = append(all, r)
	}
	return all
}

// Device returns all cached readings of one device, one per kind.
func (c *Cache) Device(deviceID string) []Reading {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var all []Reading
	for key, r := range c.entries {
		if key.deviceID == deviceID {
			all = append(all, r)
		}
	}
	return all
}
