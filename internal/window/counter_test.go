package window

import (
	"testing"
	"time"
)

func TestCounterRecordAndPrune(t *testing.T) {
	counter := NewCounter(2 * time.Second)
	now := time.Unix(1000, 0)

	if got := counter.Record("u1", now, nil); len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	counter.Record("u2", now.Add(500*time.Millisecond), nil)
	if count := counter.Count(now.Add(1 * time.Second)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := counter.Count(now.Add(3 * time.Second)); count != 0 {
		t.Fatalf("expected 0 after window passed, got %d", count)
	}
}

func TestCounterWindowBoundary(t *testing.T) {
	counter := NewCounter(10 * time.Second)
	now := time.Unix(2000, 0)
	counter.Record("u1", now, nil)

	// An entry exactly window-old no longer counts.
	if count := counter.Count(now.Add(10 * time.Second)); count != 0 {
		t.Fatalf("expected boundary entry pruned, got %d", count)
	}

	counter.Record("u2", now.Add(11*time.Second), nil)
	if count := counter.Count(now.Add(11 * time.Second)); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
}

func TestCounterPrunesOutOfOrderEntries(t *testing.T) {
	counter := NewCounter(10 * time.Second)
	now := time.Unix(5000, 0)

	// A delayed gateway event lands after a newer one. Both expire on
	// their own timestamps, not their arrival order.
	counter.Record("u1", now.Add(8*time.Second), nil)
	counter.Record("u2", now, nil)

	if count := counter.Count(now.Add(9 * time.Second)); count != 2 {
		t.Fatalf("expected 2 before expiry, got %d", count)
	}
	if count := counter.Count(now.Add(11 * time.Second)); count != 1 {
		t.Fatalf("expected old entry pruned despite newer one ahead, got %d", count)
	}
	if count := counter.Count(now.Add(19 * time.Second)); count != 0 {
		t.Fatalf("expected all pruned, got %d", count)
	}
}

func TestCounterRecordReturnsSnapshot(t *testing.T) {
	counter := NewCounter(5 * time.Second)
	now := time.Unix(3000, 0)
	counter.Record("u1", now, "a")
	counter.Record("u1", now.Add(time.Second), "b")
	snapshot := counter.Record("u2", now.Add(2*time.Second), "c")

	if len(snapshot) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snapshot))
	}
	if snapshot[2].Identity != "u2" || snapshot[2].Payload != "c" {
		t.Fatalf("unexpected last entry %+v", snapshot[2])
	}

	// Mutating the snapshot must not touch the counter's buffer.
	snapshot[0].Identity = "mutated"
	entries := counter.Entries(now.Add(2 * time.Second))
	if entries[0].Identity != "u1" {
		t.Fatalf("snapshot aliased internal buffer")
	}
}

func TestStoreGetAndEvict(t *testing.T) {
	store := NewStore(10 * time.Second)
	defer store.Stop()

	now := time.Unix(4000, 0)
	store.Get("g1").Record("u1", now, nil)
	store.Get("g2").Record("u2", now, nil)
	if store.Len() != 2 {
		t.Fatalf("expected 2 counters, got %d", store.Len())
	}
	if store.Get("g1") != store.Get("g1") {
		t.Fatalf("expected same counter instance per key")
	}

	store.evictStale(now.Add(30 * time.Second))
	if store.Len() != 2 {
		t.Fatalf("expected counters kept within staleness threshold, got %d", store.Len())
	}
	store.evictStale(now.Add(2 * time.Minute))
	if store.Len() != 0 {
		t.Fatalf("expected stale counters evicted, got %d", store.Len())
	}
	if store.Peek("g1") != nil {
		t.Fatalf("expected g1 evicted")
	}
}
