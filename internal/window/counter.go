package window

import (
	"sync"
	"time"
)

// Entry is a single recorded event inside a counter's window.
type Entry struct {
	Identity  string
	Timestamp time.Time
	Payload   any
}

// Counter tracks events over a fixed trailing time window. Entries older
// than the window are pruned eagerly on every access, so after any call the
// buffer only holds entries with now - timestamp < window.
type Counter struct {
	mu      sync.Mutex
	window  time.Duration
	entries []Entry
	lastAt  time.Time
}

func NewCounter(window time.Duration) *Counter {
	return &Counter{window: window}
}

// Record appends an entry and returns a snapshot of everything still inside
// the window, including the new entry. The snapshot is taken under the same
// lock as the append so a caller can record and classify atomically.
func (c *Counter) Record(identity string, ts time.Time, payload any) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(ts)
	c.entries = append(c.entries, Entry{Identity: identity, Timestamp: ts, Payload: payload})
	c.lastAt = ts

	snapshot := make([]Entry, len(c.entries))
	copy(snapshot, c.entries)
	return snapshot
}

func (c *Counter) Count(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(now)
	return len(c.entries)
}

func (c *Counter) Entries(now time.Time) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(now)
	snapshot := make([]Entry, len(c.entries))
	copy(snapshot, c.entries)
	return snapshot
}

func (c *Counter) Prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(now)
}

// LastRecordedAt reports when the counter was last written, for staleness
// eviction by the owning Store.
func (c *Counter) LastRecordedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAt
}

// pruneLocked drops every expired entry, not just a leading run: gateway
// events can arrive slightly out of order, so an old timestamp may sit
// behind a newer one.
func (c *Counter) pruneLocked(now time.Time) {
	cutoff := now.Add(-c.window)
	kept := c.entries[:0]
	for _, entry := range c.entries {
		if entry.Timestamp.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	c.entries = kept
}
