package telemetry

import (
	"testing"
	"time"
)

func testRecord(deviceID string) *Record {
	return &Record{
		DeviceID:   deviceID,
		ReportedAt: time.Now().UTC(),
		ReceivedAt: time.Now().UTC(),
		Latitude:   f(51.5),
		Speed:      f(40),
	}
}

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c := NewCache(ttl)
	t.Cleanup(c.Close)
	return c
}

func TestCache_PutAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)

	c.Put(testRecord("DEV001"))

	got := c.Get("DEV001")
	if got == nil {
		t.Fatal("Get() returned nil after Put")
	}
	if got.DeviceID != "DEV001" {
		t.Errorf("DeviceID = %q, want DEV001", got.DeviceID)
	}
	if c.Get("DEV999") != nil {
		t.Error("Get() of an unknown device should return nil")
	}
}

func TestCache_ReturnsCopy(t *testing.T) {
	c := newTestCache(t, time.Hour)

	original := testRecord("DEV001")
	c.Put(original)

	// Mutating the caller's record must not reach the cache.
	*original.Latitude = -1
	if got := c.Get("DEV001"); *got.Latitude != 51.5 {
		t.Errorf("cached latitude = %v, want 51.5", *got.Latitude)
	}

	// Mutating a returned record must not reach the cache either.
	got := c.Get("DEV001")
	*got.Latitude = -2
	if again := c.Get("DEV001"); *again.Latitude != 51.5 {
		t.Errorf("cached latitude after mutation = %v, want 51.5", *again.Latitude)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := newTestCache(t, time.Hour)

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put(testRecord("DEV001"))

	current = current.Add(59 * time.Minute)
	if c.Get("DEV001") == nil {
		t.Fatal("entry expired before its TTL")
	}

	current = current.Add(2 * time.Minute)
	if c.Get("DEV001") != nil {
		t.Fatal("entry survived past its TTL")
	}

	// Lazy removal on expired read.
	if c.Len() != 0 {
		t.Errorf("Len() = %d after expired read, want 0", c.Len())
	}
}

func TestCache_PutResetsTTL(t *testing.T) {
	c := newTestCache(t, time.Hour)

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put(testRecord("DEV001"))
	current = current.Add(45 * time.Minute)
	c.Put(testRecord("DEV001"))
	current = current.Add(45 * time.Minute)

	if c.Get("DEV001") == nil {
		t.Error("Put should have reset the TTL")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(t, time.Hour)

	c.Put(testRecord("DEV001"))
	c.Invalidate("DEV001")

	if c.Get("DEV001") != nil {
		t.Error("Get() should miss after Invalidate")
	}
}

func TestCache_Sweep(t *testing.T) {
	c := newTestCache(t, time.Hour)

	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put(testRecord("DEV001"))
	c.Put(testRecord("DEV002"))

	current = current.Add(2 * time.Hour)
	c.Put(testRecord("DEV003"))

	c.sweep()

	if c.Len() != 1 {
		t.Errorf("Len() = %d after sweep, want 1", c.Len())
	}
	if c.Get("DEV003") == nil {
		t.Error("fresh entry should survive the sweep")
	}
}

func TestCache_PutNil(t *testing.T) {
	c := newTestCache(t, time.Hour)
	c.Put(nil)
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Put(nil), want 0", c.Len())
	}
}
