package joinraid

import (
	"fmt"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/window"
)

const (
	newAccountAge     = 7 * 24 * time.Hour
	veryNewAccountAge = 24 * time.Hour
	infantAccountAge  = time.Hour
)

// Join is a member-join observation. A zero AccountCreatedAt means the
// creation timestamp was missing; it is treated as age zero, the most
// suspicious possible value.
type Join struct {
	GuildID          string
	UserID           string
	JoinedAt         time.Time
	AccountCreatedAt time.Time
	HasAvatar        bool
}

// Verdict is the classification of a single join against the guild's
// current join window. The caller applies policy: raid-mode transitions,
// bans and kicks all happen above this module.
type Verdict struct {
	Raid       bool
	Reason     string
	BanJoiner  bool
	KickJoiner bool
	KickReason string
}

type joinRecord struct {
	accountAge time.Duration
}

type Module struct {
	windows *window.Store
	cfg     config.Thresholds
}

func New(cfg config.Thresholds) *Module {
	return &Module{
		windows: window.NewStore(time.Duration(cfg.JoinWindowSeconds) * time.Second),
		cfg:     cfg,
	}
}

// Observe records the join into the guild's window and classifies it.
// underRaid reports whether the guild is already in raid mode; new accounts
// joining an ongoing raid are flagged for banning even when this particular
// window no longer crosses the raid threshold.
func (m *Module) Observe(join Join, strictMode, underRaid bool) Verdict {
	age := accountAge(join)
	counter := m.windows.Get(join.GuildID)
	entries := counter.Record(join.UserID, join.JoinedAt, joinRecord{accountAge: age})

	joinCount := len(entries)
	newCount := 0
	veryNewCount := 0
	for _, entry := range entries {
		record, ok := entry.Payload.(joinRecord)
		if !ok {
			continue
		}
		if record.accountAge < newAccountAge {
			newCount++
		}
		if record.accountAge < veryNewAccountAge {
			veryNewCount++
		}
	}

	raid := joinCount > m.cfg.RaidJoins ||
		newCount > m.cfg.RaidNewAccounts ||
		veryNewCount > m.cfg.RaidVeryNewAccounts

	verdict := Verdict{Raid: raid}
	if raid {
		verdict.Reason = fmt.Sprintf("suspicious join pattern: %d joins in %ds, %d new accounts",
			joinCount, m.cfg.JoinWindowSeconds, newCount)
	}

	if (raid || underRaid) && age < veryNewAccountAge {
		verdict.BanJoiner = true
		return verdict
	}
	if raid {
		return verdict
	}

	if strictMode {
		switch {
		case age < infantAccountAge:
			verdict.KickJoiner = true
			verdict.KickReason = "account created less than an hour ago"
		case !join.HasAvatar && age < newAccountAge:
			verdict.KickJoiner = true
			verdict.KickReason = "no avatar and account less than a week old"
		}
	}
	return verdict
}

// RecentJoins reports how many joins are currently inside the guild's window.
func (m *Module) RecentJoins(guildID string, now time.Time) int {
	counter := m.windows.Peek(guildID)
	if counter == nil {
		return 0
	}
	return counter.Count(now)
}

func (m *Module) Close() {
	m.windows.Stop()
}

func accountAge(join Join) time.Duration {
	if join.AccountCreatedAt.IsZero() {
		return 0
	}
	age := join.JoinedAt.Sub(join.AccountCreatedAt)
	if age < 0 {
		return 0
	}
	return age
}
