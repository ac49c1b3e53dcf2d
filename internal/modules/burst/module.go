package burst

import (
	"sort"
	"sync"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/window"
)

// Message is a channel-message observation for burst tracking.
type Message struct {
	GuildID   string
	ChannelID string
	UserID    string
	At        time.Time
}

// Verdict classifies the channel's current window. Flooders and SlowMode
// are only populated on the opening edge of a burst episode; while the
// episode stays open, further qualifying messages report Triggered without
// repeating the action requests.
type Verdict struct {
	Triggered  bool
	NewEpisode bool
	Flooders   []string
	SlowMode   bool
}

type Module struct {
	windows *window.Store
	cfg     config.Thresholds

	mu       sync.Mutex
	episodes map[string]bool
}

func New(cfg config.Thresholds) *Module {
	return &Module{
		windows:  window.NewStore(time.Duration(cfg.BurstWindowSeconds) * time.Second),
		cfg:      cfg,
		episodes: make(map[string]bool),
	}
}

// Observe records the message into the channel's window and classifies it.
func (m *Module) Observe(msg Message) Verdict {
	key := msg.GuildID + ":" + msg.ChannelID
	entries := m.windows.Get(key).Record(msg.UserID, msg.At, nil)

	perUser := make(map[string]int)
	for _, entry := range entries {
		perUser[entry.Identity]++
	}
	isBurst := len(entries) > m.cfg.BurstMessages && len(perUser) < m.cfg.BurstDistinctUsers

	m.mu.Lock()
	defer m.mu.Unlock()

	if !isBurst {
		delete(m.episodes, key)
		return Verdict{}
	}
	if m.episodes[key] {
		return Verdict{Triggered: true}
	}
	m.episodes[key] = true

	var flooders []string
	for userID, count := range perUser {
		if count > m.cfg.BurstUserMessages {
			flooders = append(flooders, userID)
		}
	}
	sort.Strings(flooders)

	return Verdict{Triggered: true, NewEpisode: true, Flooders: flooders, SlowMode: true}
}

func (m *Module) Close() {
	m.windows.Stop()
}
