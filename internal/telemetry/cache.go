package telemetry

import (
	"sync"
	"time"
)

// cacheEntry is one cached snapshot with its expiry deadline.
type cacheEntry struct {
	record    *Record
	expiresAt time.Time
}

// Cache is an in-process read/write-through cache of latest snapshots.
//
// Entries expire after a fixed TTL so a device that stops reporting
// eventually vanishes from the cache instead of serving stale data
// forever. The cache is best-effort on both paths: a miss falls through
// to the snapshot store, and a failed put is invisible to callers.
//
// All methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration

	stop     chan struct{}
	stopOnce sync.Once

	// now is replaceable for tests.
	now func() time.Time
}

// janitorInterval is how often expired entries are swept out.
const janitorInterval = 10 * time.Minute

// NewCache creates a snapshot cache with the given entry TTL.
// A background janitor sweeps expired entries; call Close on shutdown.
func NewCache(ttl time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
		now:     time.Now,
	}

	go c.janitor()

	return c
}

// Get returns the cached snapshot for a device, or nil on miss.
// Expired entries count as misses and are removed lazily.
// The returned record is a deep copy; callers can safely modify it.
func (c *Cache) Get(deviceID string) *Record {
	c.mu.RLock()
	entry, ok := c.entries[deviceID]
	c.mu.RUnlock()

	if !ok {
		return nil
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a Put may have refreshed it.
		if current, ok := c.entries[deviceID]; ok && c.now().After(current.expiresAt) {
			delete(c.entries, deviceID)
		}
		c.mu.Unlock()
		return nil
	}

	return entry.record.DeepCopy()
}

// Put stores a snapshot, resetting its TTL.
// The record is deep-copied, so callers keep ownership of theirs.
func (c *Cache) Put(record *Record) {
	if record == nil {
		return
	}

	c.mu.Lock()
	c.entries[record.DeviceID] = cacheEntry{
		record:    record.DeepCopy(),
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Invalidate removes a device's cached snapshot.
func (c *Cache) Invalidate(deviceID string) {
	c.mu.Lock()
	delete(c.entries, deviceID)
	c.mu.Unlock()
}

// Len returns the number of cached entries, including not-yet-swept
// expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background janitor. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// janitor periodically sweeps expired entries.
func (c *Cache) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

// sweep removes all expired entries.
func (c *Cache) sweep() {
	now := c.now()

	c.mu.Lock()
	for deviceID, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, deviceID)
		}
	}
	c.mu.Unlock()
}
