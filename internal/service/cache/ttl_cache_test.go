package cache

import (
	"strconv"
	"testing"
	"time"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewTTLCache[string](30 * time.Second).WithClock(func() time.Time { return now })

	c.Set("AAPL", "detail")
	if v, ok := c.Get("AAPL"); !ok || v != "detail" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	now = now.Add(31 * time.Second)
	if _, ok := c.Get("AAPL"); ok {
		t.Fatal("entry should have expired")
	}
	if len(c.m) != 0 {
		t.Fatalf("expired entry not removed, len=%d", len(c.m))
	}
}

func TestTTLCacheSetPurgesExpiredWhenFull(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewTTLCache[int](time.Minute).WithClock(func() time.Time { return now })
	for i := 0; i < purgeAt; i++ {
		c.Set(strconv.Itoa(i), i)
	}
	now = now.Add(2 * time.Minute)
	c.Set("fresh", 1)

	if len(c.m) != 1 {
		t.Fatalf("len = %d, want only the fresh entry", len(c.m))
	}
	if v, ok := c.Get("fresh"); !ok || v != 1 {
		t.Fatal("fresh entry should survive purge")
	}
}

func TestTTLCacheNoExpiry(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewTTLCache[int](0).WithClock(func() time.Time { return now })
	c.Set("k", 7)
	now = now.Add(24 * 365 * time.Hour)
	if v, ok := c.Get("k"); !ok || v != 7 {
		t.Fatal("zero ttl should never expire")
	}
}
