package spamcheck

import (
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/window"
)

const (
	ReasonFlooding   = "message flooding"
	ReasonDuplicates = "duplicate messages"
	ReasonMentions   = "excessive mentions"
)

// Message is a single authored message with the signals the classifier
// looks at. Mentions is the mention count of this message only.
type Message struct {
	GuildID  string
	UserID   string
	Content  string
	Mentions int
	At       time.Time
}

// Verdict reports whether the author's rolling history classifies the
// message as spam. Each predicate is a hard threshold; the first one that
// holds supplies the reason. The classifier never acts on its own.
type Verdict struct {
	IsSpam bool
	Reason string
}

type Module struct {
	windows *window.Store
	cfg     config.Thresholds
}

func New(cfg config.Thresholds) *Module {
	return &Module{
		windows: window.NewStore(time.Duration(cfg.SpamWindowSeconds) * time.Second),
		cfg:     cfg,
	}
}

// Classify records the message into the author's window and evaluates the
// spam predicates against it.
func (m *Module) Classify(msg Message) Verdict {
	key := msg.GuildID + ":" + msg.UserID
	entries := m.windows.Get(key).Record(msg.UserID, msg.At, msg.Content)

	if len(entries) > m.cfg.SpamMessages {
		return Verdict{IsSpam: true, Reason: ReasonFlooding}
	}

	duplicates := 0
	for _, entry := range entries {
		if content, ok := entry.Payload.(string); ok && content == msg.Content {
			duplicates++
		}
	}
	if duplicates > m.cfg.SpamDuplicates {
		return Verdict{IsSpam: true, Reason: ReasonDuplicates}
	}

	if msg.Mentions > m.cfg.SpamMentions {
		return Verdict{IsSpam: true, Reason: ReasonMentions}
	}

	return Verdict{}
}

func (m *Module) Close() {
	m.windows.Stop()
}
