package raidstate

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Duration a guild stays in raid mode without manual deactivation.
const raidLifetime = 30 * time.Minute

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// State is the raid-mode record for one guild. Copies handed out by the
// store are read-only snapshots.
type State struct {
	GuildID      string
	IncidentID   string
	Active       bool
	StartedAt    time.Time
	Reason       string
	AutoExpireAt time.Time
}

// Store holds per-guild raid state. Activation schedules an auto-expiry
// timer; reads also compare against AutoExpireAt so an injected fake clock
// expires state deterministically without firing timers. Re-activating an
// already active guild is a no-op and never extends the expiry.
type Store struct {
	mu       sync.Mutex
	clock    Clock
	states   map[string]*State
	timers   map[string]Timer
	onExpire func(guildID string)
}

func New() *Store {
	return &Store{
		clock:  realClock{},
		states: make(map[string]*State),
		timers: make(map[string]Timer),
	}
}

func (s *Store) WithClock(clock Clock) {
	s.clock = clock
}

// SetExpiryHook registers a callback invoked when a raid expires on its own.
// Must be set before the first Activate.
func (s *Store) SetExpiryHook(hook func(guildID string)) {
	s.onExpire = hook
}

// Activate puts the guild into raid mode. Returns the resulting state and
// whether a transition happened; false means the guild was already active.
func (s *Store) Activate(guildID, reason string) (State, bool) {
	s.mu.Lock()

	now := s.clock.Now()
	if existing := s.states[guildID]; existing != nil && existing.Active && now.Before(existing.AutoExpireAt) {
		snapshot := *existing
		s.mu.Unlock()
		return snapshot, false
	}

	state := &State{
		GuildID:      guildID,
		IncidentID:   uuid.NewString(),
		Active:       true,
		StartedAt:    now,
		Reason:       reason,
		AutoExpireAt: now.Add(raidLifetime),
	}
	s.states[guildID] = state

	if old := s.timers[guildID]; old != nil {
		old.Stop()
	}
	s.timers[guildID] = s.clock.AfterFunc(raidLifetime, func() {
		if s.expire(guildID) && s.onExpire != nil {
			s.onExpire(guildID)
		}
	})

	snapshot := *state
	s.mu.Unlock()
	return snapshot, true
}

// Deactivate clears raid mode. Returns false if the guild was not active.
func (s *Store) Deactivate(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.states[guildID]
	if state == nil || !state.Active {
		return false
	}
	state.Active = false
	if timer := s.timers[guildID]; timer != nil {
		timer.Stop()
		delete(s.timers, guildID)
	}
	return true
}

func (s *Store) IsActive(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[guildID]
	if state == nil || !state.Active {
		return false
	}
	if !s.clock.Now().Before(state.AutoExpireAt) {
		state.Active = false
		return false
	}
	return true
}

// Snapshot returns a copy of the guild's state, expired or not.
func (s *Store) Snapshot(guildID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[guildID]
	if state == nil {
		return State{}, false
	}
	return *state, true
}

// SnapshotAll returns copies of every currently active state.
func (s *Store) SnapshotAll() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	var out []State
	for _, state := range s.states {
		if state.Active && now.Before(state.AutoExpireAt) {
			out = append(out, *state)
		}
	}
	return out
}

// Close stops all outstanding expiry timers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for guildID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, guildID)
	}
}

func (s *Store) expire(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[guildID]
	if state == nil || !state.Active {
		return false
	}
	state.Active = false
	delete(s.timers, guildID)
	return true
}
