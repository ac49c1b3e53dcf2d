package window

import (
	"sync"
	"time"
)

const (
	sweepInterval  = 5 * time.Minute
	staleThreshold = time.Minute
)

// Store owns a set of counters keyed by an arbitrary string (guild id,
// guild:channel, guild:user). Counters are created on first use and evicted
// by a background sweep once they have been idle past the staleness
// threshold. Eviction is housekeeping only; a re-created counter starts
// empty, which is the same answer an empty window would give.
type Store struct {
	mu       sync.Mutex
	window   time.Duration
	counters map[string]*Counter
	stop     chan struct{}
	stopOnce sync.Once
}

func NewStore(window time.Duration) *Store {
	s := &Store{
		window:   window,
		counters: make(map[string]*Counter),
		stop:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Get returns the counter for key, creating it if needed.
func (s *Store) Get(key string) *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	counter := s.counters[key]
	if counter == nil {
		counter = NewCounter(s.window)
		s.counters[key] = counter
	}
	return counter
}

// Peek returns the counter for key without creating one.
func (s *Store) Peek(key string) *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key]
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Stop terminates the background sweep goroutine.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *Store) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.evictStale(now)
		}
	}
}

func (s *Store) evictStale(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, counter := range s.counters {
		last := counter.LastRecordedAt()
		if last.IsZero() || now.Sub(last) > staleThreshold {
			delete(s.counters, key)
		}
	}
}
