package ratelimit

import (
	"strconv"
	"testing"
	"time"
)

func TestAllowDrainsAndRefills(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(2, 1, WithClock(func() time.Time { return now }))

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 should pass")
	}
	if l.Allow("a") {
		t.Fatal("third call should be limited")
	}
	if !l.Allow("b") {
		t.Fatal("keys are independent")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatal("one token refilled after 1s")
	}
	if l.Allow("a") {
		t.Fatal("only one token refilled")
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(2, 1, WithClock(func() time.Time { return now }))
	l.Allow("a")
	l.Allow("a")
	l.Allow("b")

	l.sweepLocked(now)
	if len(l.m) != 2 {
		t.Fatalf("busy buckets swept, left %d", len(l.m))
	}
	now = now.Add(time.Second)
	l.sweepLocked(now)
	if _, ok := l.m["b"]; ok || len(l.m) != 1 {
		t.Fatalf("want b dropped, left %d", len(l.m))
	}
}

func TestNewKeySweepsWhenFull(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(1, 1, WithClock(func() time.Time { return now }))
	for i := 0; i < sweepAt; i++ {
		l.Allow(strconv.Itoa(i))
	}
	now = now.Add(time.Second)
	if !l.Allow("fresh") {
		t.Fatal("new key should pass")
	}
	if len(l.m) != 1 {
		t.Fatalf("idle buckets kept, len=%d", len(l.m))
	}
}
