package xp

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/storage"

	"go.uber.org/zap"
)

// Service awards message XP with a per-user cooldown and computes levels.
// XP totals live in storage; the cooldown ledger is in-memory only and
// resets on restart, which at worst grants one early award.
type Service struct {
	cfg    config.XPConfig
	store  *storage.Store
	logger *zap.Logger

	mu        sync.Mutex
	clock     Clock
	lastAward map[string]time.Time
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Award is the outcome of a message XP grant.
type Award struct {
	Granted   bool
	Total     int
	Level     int
	LeveledUp bool
}

func New(cfg config.XPConfig, store *storage.Store, logger *zap.Logger) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		clock:     realClock{},
		lastAward: make(map[string]time.Time),
	}
}

func (s *Service) WithClock(clock Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// HandleMessage grants XP for a message if the author is off cooldown.
func (s *Service) HandleMessage(ctx context.Context, guildID, userID string) Award {
	if !s.cfg.Enabled {
		return Award{}
	}
	if !s.takeCooldown(guildID, userID) {
		return Award{}
	}

	total, err := s.store.AddXP(ctx, guildID, userID, s.cfg.PerMessage)
	if err != nil {
		s.logger.Warn("xp grant failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		return Award{}
	}
	if total == 0 {
		// Opted out.
		return Award{}
	}

	level := Level(total)
	return Award{
		Granted:   true,
		Total:     total,
		Level:     level,
		LeveledUp: level > Level(total-s.cfg.PerMessage),
	}
}

// Level converts an XP total to a level: level n needs n^2 * 100 XP.
func Level(total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Sqrt(float64(total) / 100))
}

// NextLevelXP reports the XP total required for the next level.
func NextLevelXP(total int) int {
	next := Level(total) + 1
	return next * next * 100
}

func (s *Service) takeCooldown(guildID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := guildID + ":" + userID
	now := s.clock.Now()
	cooldown := time.Duration(s.cfg.CooldownSeconds) * time.Second
	if last, ok := s.lastAward[key]; ok && now.Sub(last) < cooldown {
		return false
	}
	s.lastAward[key] = now
	return true
}
