// Package stats tracks render passes per surface and how each input was
// resolved, for the health endpoint and the console status line.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker counts render passes and input resolutions. Safe for concurrent use.
type Tracker struct {
	// counters live in sync.Map + atomic.Uint64 so concurrent requests don't fight over a mutex
	surfaceCounts sync.Map // surface -> *atomic.Uint64
	originCounts  sync.Map // "input|origin" -> *atomic.Uint64
	start         atomic.Int64
	passes        atomic.Uint64
}

// NewTracker creates a new stats tracker
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// IncrementPass records one render pass served by a surface (web, console, report).
func (t *Tracker) IncrementPass(surface string) {
	if t == nil {
		return
	}
	t.passes.Add(1)
	incrementCounter(&t.surfaceCounts, strings.ToLower(strings.TrimSpace(surface)))
}

// IncrementOrigin records where an input came from during a render pass.
func (t *Tracker) IncrementOrigin(input, origin string) {
	if t == nil {
		return
	}
	input = strings.TrimSpace(input)
	origin = strings.TrimSpace(origin)
	if input == "" || origin == "" {
		return
	}
	incrementCounter(&t.originCounts, input+"|"+origin)
}

// Passes returns the total number of render passes.
func (t *Tracker) Passes() uint64 {
	if t == nil {
		return 0
	}
	return t.passes.Load()
}

// GetSurfaceCounts returns a copy of per-surface pass counts.
func (t *Tracker) GetSurfaceCounts() map[string]uint64 {
	return copyCounts(&t.surfaceCounts)
}

// GetOriginCounts returns a copy of "input|origin" counts.
func (t *Tracker) GetOriginCounts() map[string]uint64 {
	return copyCounts(&t.originCounts)
}

// GetUptime returns how long the tracker has been running
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines() []string {
	if t == nil {
		return nil
	}
	lines := make([]string, 0, 3)
	lines = append(lines, fmt.Sprintf("Render passes: %d (uptime %s)", t.Passes(), t.GetUptime().Truncate(time.Second)))
	lines = append(lines, formatMapCounts("Passes by surface", &t.surfaceCounts))
	lines = append(lines, formatMapCounts("Inputs by origin", &t.originCounts))
	return lines
}

func copyCounts(m *sync.Map) map[string]uint64 {
	counts := make(map[string]uint64)
	m.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

func formatMapCounts(label string, counts *sync.Map) string {
	snapshot := copyCounts(counts)
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var builder strings.Builder
	builder.WriteString(label)
	builder.WriteString(": ")
	if len(keys) == 0 {
		builder.WriteString("(none)")
		return builder.String()
	}
	for i, k := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s=%d", k, snapshot[k])
	}
	return builder.String()
}

func incrementCounter(m *sync.Map, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
