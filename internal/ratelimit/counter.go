// Package ratelimit throttles repeated log lines, such as the same input being
// absent on every render pass.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter tracks occurrences and the last time a log was emitted.
// It is safe for concurrent use.
type Counter struct {
	interval   time.Duration
	lastLog    atomic.Int64
	total      atomic.Uint64
	suppressed atomic.Uint64
}

// NewCounter constructs a Counter that allows a log at most once per interval.
// A zero or negative interval disables throttling (always logs).
func NewCounter(interval time.Duration) *Counter {
	return &Counter{interval: interval}
}

// Inc records an occurrence and reports whether logging is allowed. When it is,
// suppressed is the number of occurrences swallowed since the previous log.
func (c *Counter) Inc(now time.Time) (suppressed uint64, ok bool) {
	if c == nil {
		return 0, false
	}
	c.total.Add(1)
	if c.interval <= 0 {
		return 0, true
	}
	ts := now.UTC().UnixNano()
	last := c.lastLog.Load()
	if last != 0 && ts-last < c.interval.Nanoseconds() {
		c.suppressed.Add(1)
		return 0, false
	}
	if c.lastLog.CompareAndSwap(last, ts) {
		return c.suppressed.Swap(0), true
	}
	c.suppressed.Add(1)
	return 0, false
}

// Total returns every occurrence seen, logged or not.
func (c *Counter) Total() uint64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}

// Keyed hands out one Counter per key.
type Keyed struct {
	interval time.Duration
	mu       sync.Mutex
	counters map[string]*Counter
}

// NewKeyed constructs a Keyed limiter with a shared interval.
func NewKeyed(interval time.Duration) *Keyed {
	return &Keyed{interval: interval, counters: make(map[string]*Counter)}
}

// Allow records an occurrence of key; see Counter.Inc.
func (k *Keyed) Allow(key string, now time.Time) (uint64, bool) {
	if k == nil {
		return 0, true
	}
	k.mu.Lock()
	c, ok := k.counters[key]
	if !ok {
		c = NewCounter(k.interval)
		k.counters[key] = c
	}
	k.mu.Unlock()
	return c.Inc(now)
}
