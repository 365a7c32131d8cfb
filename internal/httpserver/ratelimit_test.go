package httpserver

import (
	"testing"
	"time"
)

func TestIPLimiterDisabled(t *testing.T) {
	if l := newIPLimiter(0, 10); l != nil {
		t.Fatalf("rps=0 should disable limiting, got %+v", l)
	}
}

func TestIPLimiterSweepsIdleBuckets(t *testing.T) {
	l := newIPLimiter(1, 1)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	l.get("10.0.0.1")
	l.get("10.0.0.2")
	if n := l.size(); n != 2 {
		t.Fatalf("size = %d, want 2", n)
	}

	// .2 stays active; .1 goes quiet.
	now = now.Add(bucketIdle / 2)
	l.get("10.0.0.2")

	now = now.Add(bucketIdle / 2)
	l.get("10.0.0.3") // triggers the sweep
	if n := l.size(); n != 2 {
		t.Fatalf("size after sweep = %d, want 2", n)
	}
	l.mu.Lock()
	_, stale := l.buckets["10.0.0.1"]
	_, active := l.buckets["10.0.0.2"]
	l.mu.Unlock()
	if stale || !active {
		t.Fatalf("stale kept=%v active kept=%v", stale, active)
	}
}

func TestIPLimiterKeepsBudgetAcrossRequests(t *testing.T) {
	l := newIPLimiter(0.001, 1)
	if !l.get("10.0.0.1").Allow() {
		t.Fatal("first request denied")
	}
	if l.get("10.0.0.1").Allow() {
		t.Fatal("second request allowed past burst")
	}
	if !l.get("10.0.0.2").Allow() {
		t.Fatal("other client shares the bucket")
	}
}
