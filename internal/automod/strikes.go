package automod

import (
	"math"
	"sync"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/config"
)

type strikeEntry struct {
	score      float64
	lastUpdate time.Time
}

// Strikes accumulates per-user offense scores with linear decay. Scores
// drive automod escalation: repeat offenders within the decay horizon get
// timed out or banned instead of another warning.
type Strikes struct {
	mu      sync.Mutex
	cfg     config.AutoModConfig
	clock   Clock
	entries map[string]*strikeEntry
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func NewStrikes(cfg config.AutoModConfig) *Strikes {
	return &Strikes{
		cfg:     cfg,
		clock:   realClock{},
		entries: make(map[string]*strikeEntry),
	}
}

func (s *Strikes) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Strikes) Add(guildID, userID string, delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := guildID + ":" + userID
	now := s.clock.Now()

	item := s.entries[key]
	if item == nil {
		item = &strikeEntry{lastUpdate: now}
		s.entries[key] = item
	}

	item.score = s.decay(item.score, item.lastUpdate, now)
	item.score = math.Max(0, item.score+delta)
	item.lastUpdate = now
	return item.score
}

func (s *Strikes) Score(guildID, userID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := guildID + ":" + userID
	item := s.entries[key]
	if item == nil {
		return 0
	}

	now := s.clock.Now()
	if s.isExpired(item.lastUpdate, now) {
		delete(s.entries, key)
		return 0
	}
	item.score = s.decay(item.score, item.lastUpdate, now)
	item.lastUpdate = now
	return item.score
}

func (s *Strikes) Reset(guildID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, guildID+":"+userID)
}

func (s *Strikes) decay(score float64, lastUpdate, now time.Time) float64 {
	minutes := now.Sub(lastUpdate).Minutes()
	if minutes <= 0 {
		return score
	}
	decayed := score - (minutes * s.cfg.StrikeDecayPerMin)
	if decayed < 0 {
		return 0
	}
	return decayed
}

func (s *Strikes) isExpired(lastUpdate, now time.Time) bool {
	if s.cfg.StrikeTTLMinutes <= 0 {
		return false
	}
	return now.Sub(lastUpdate) > (time.Duration(s.cfg.StrikeTTLMinutes) * time.Minute)
}
