package ratelimit

import (
	"testing"
	"time"
)

func TestCounterThrottlesWithinInterval(t *testing.T) {
	c := NewCounter(time.Minute)
	base := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if _, ok := c.Inc(base); !ok {
		t.Fatalf("expected first occurrence to log")
	}
	if _, ok := c.Inc(base.Add(10 * time.Second)); ok {
		t.Fatalf("expected second occurrence inside interval to be throttled")
	}
	if _, ok := c.Inc(base.Add(20 * time.Second)); ok {
		t.Fatalf("expected third occurrence inside interval to be throttled")
	}
	suppressed, ok := c.Inc(base.Add(2 * time.Minute))
	if !ok {
		t.Fatalf("expected occurrence after interval to log")
	}
	if suppressed != 2 {
		t.Fatalf("expected 2 suppressed, got %d", suppressed)
	}
	if c.Total() != 4 {
		t.Fatalf("expected total 4, got %d", c.Total())
	}
}

func TestCounterZeroIntervalAlwaysLogs(t *testing.T) {
	c := NewCounter(0)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if _, ok := c.Inc(now); !ok {
			t.Fatalf("expected every occurrence to log")
		}
	}
}

func TestKeyedSeparatesKeys(t *testing.T) {
	k := NewKeyed(time.Hour)
	now := time.Now()
	if _, ok := k.Allow("history", now); !ok {
		t.Fatalf("expected history to log")
	}
	if _, ok := k.Allow("forecast", now); !ok {
		t.Fatalf("expected forecast to log independently")
	}
	if _, ok := k.Allow("history", now); ok {
		t.Fatalf("expected repeated history to be throttled")
	}
}
