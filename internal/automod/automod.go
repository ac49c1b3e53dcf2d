package automod

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/Fl4chi/discord-smartbot/internal/actions"
	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/modules/audit"
	"github.com/Fl4chi/discord-smartbot/internal/modules/spamcheck"

	"go.uber.org/zap"
)

var toxicWords = []string{
	"stronzo", "merda", "cazzo", "fottuti", "bastardo",
	"shit", "fuck", "damn", "bitch", "asshole",
	"idiota", "stupido", "coglione", "porco", "schifo",
}

// repeatedRunes reports whether content contains a two-rune unit repeated
// five or more times in a row ("hahahahaha", "!?!?!?!?!?").
func repeatedRunes(content string) bool {
	runes := []rune(content)
	for i := 0; i+10 <= len(runes); i++ {
		a, b := runes[i], runes[i+1]
		reps := 1
		for j := i + 2; j+1 < len(runes) && runes[j] == a && runes[j+1] == b; j += 2 {
			reps++
		}
		if reps >= 5 {
			return true
		}
	}
	return false
}

// Message is an authored message as seen by the auto-moderation pipeline.
type Message struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Content   string
	Mentions  int
	At        time.Time
}

// Result describes what the pipeline did with a message.
type Result struct {
	Flagged bool
	Reason  string
	Action  string
}

// Blocklist resolves a guild's blocked link domains.
type Blocklist interface {
	ListDomainBlock(ctx context.Context, guildID string) ([]string, error)
}

// Module is the content-heuristic auto-moderator. It consumes the spam
// classifier's verdict plus its own toxicity/link/caps checks and decides
// the response; the raid-protection coordinator runs before it and is
// independent of it.
type Module struct {
	cfg       config.AutoModConfig
	spam      *spamcheck.Module
	strikes   *Strikes
	exec      actions.Executor
	exempt    actions.Exemptions
	audit     *audit.Logger
	blocklist Blocklist
	logger    *zap.Logger
}

func New(cfg config.Config, exec actions.Executor, exempt actions.Exemptions, auditLogger *audit.Logger, blocklist Blocklist, logger *zap.Logger) *Module {
	return &Module{
		cfg:       cfg.AutoMod,
		spam:      spamcheck.New(cfg.Thresholds),
		strikes:   NewStrikes(cfg.AutoMod),
		exec:      exec,
		exempt:    exempt,
		audit:     auditLogger,
		blocklist: blocklist,
		logger:    logger,
	}
}

// WithClock injects a clock into the strike ledger for deterministic decay
// in tests.
func (m *Module) WithClock(clock Clock) {
	m.strikes.WithClock(clock)
}

func (m *Module) HandleMessage(ctx context.Context, msg Message) Result {
	if !m.cfg.Enabled {
		return Result{}
	}
	if m.exempt.HasModerationExemption(ctx, msg.GuildID, msg.UserID) {
		return Result{}
	}

	verdict := m.spam.Classify(spamcheck.Message{
		GuildID:  msg.GuildID,
		UserID:   msg.UserID,
		Content:  msg.Content,
		Mentions: msg.Mentions,
		At:       msg.At,
	})
	if verdict.IsSpam {
		return m.punishSpam(ctx, msg, verdict.Reason)
	}

	if reason, ok := m.contentOffense(ctx, msg); ok {
		return m.punishContent(ctx, msg, reason)
	}
	return Result{}
}

func (m *Module) Close() {
	m.spam.Close()
}

// punishSpam deletes the message and times the author out, escalating to a
// ban once the strike score crosses the ban threshold.
func (m *Module) punishSpam(ctx context.Context, msg Message, reason string) Result {
	if err := m.exec.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil {
		m.logger.Warn("automod delete failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}

	score := m.strikes.Add(msg.GuildID, msg.UserID, 2)
	if m.cfg.BanStrikes > 0 && score >= m.cfg.BanStrikes {
		detail := "auto-mod: repeated spam (" + reason + ")"
		if err := m.exec.Ban(ctx, msg.GuildID, msg.UserID, detail, 1); err != nil {
			m.logger.Warn("automod ban failed", zap.String("user_id", msg.UserID), zap.Error(err))
		}
		m.audit.LogAction(ctx, msg.GuildID, msg.UserID, audit.ActionBan, detail)
		return Result{Flagged: true, Reason: reason, Action: "banned"}
	}

	detail := "auto-mod: " + reason
	timeout := time.Duration(m.cfg.TimeoutMinutes) * time.Minute
	if err := m.exec.Timeout(ctx, msg.GuildID, msg.UserID, timeout, detail); err != nil {
		m.logger.Warn("automod timeout failed", zap.String("user_id", msg.UserID), zap.Error(err))
	}
	m.audit.LogAction(ctx, msg.GuildID, msg.UserID, audit.ActionTimeout, detail)
	return Result{Flagged: true, Reason: reason, Action: "deleted + timeout"}
}

func (m *Module) punishContent(ctx context.Context, msg Message, reason string) Result {
	if err := m.exec.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil {
		m.logger.Warn("automod delete failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}

	detail := "auto-mod: " + reason
	score := m.strikes.Add(msg.GuildID, msg.UserID, 1)
	if m.cfg.TimeoutStrikes > 0 && score >= m.cfg.TimeoutStrikes {
		timeout := time.Duration(m.cfg.TimeoutMinutes) * time.Minute
		if err := m.exec.Timeout(ctx, msg.GuildID, msg.UserID, timeout, detail); err != nil {
			m.logger.Warn("automod timeout failed", zap.String("user_id", msg.UserID), zap.Error(err))
		}
		m.audit.LogAction(ctx, msg.GuildID, msg.UserID, audit.ActionTimeout, detail)
		return Result{Flagged: true, Reason: reason, Action: "deleted + timeout"}
	}

	m.audit.LogAction(ctx, msg.GuildID, msg.UserID, audit.ActionWarn, detail)
	return Result{Flagged: true, Reason: reason, Action: "deleted + warned"}
}

func (m *Module) contentOffense(ctx context.Context, msg Message) (string, bool) {
	lower := strings.ToLower(msg.Content)
	for _, word := range toxicWords {
		if strings.Contains(lower, word) {
			return "toxic language", true
		}
	}

	if hasInviteLink(msg.Content) {
		return "unsolicited invite link", true
	}
	if m.blocklist != nil {
		domains, err := m.blocklist.ListDomainBlock(ctx, msg.GuildID)
		if err != nil {
			m.logger.Warn("blocklist lookup failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		} else if domain, ok := blockedDomain(msg.Content, toSet(domains)); ok {
			return "blocked domain: " + domain, true
		}
	}

	if massiveCaps(msg.Content) {
		return "excessive caps", true
	}
	if repeatedRunes(msg.Content) {
		return "repeated characters", true
	}
	return "", false
}

// massiveCaps flags messages that are mostly upper-case letters. Short
// messages are ignored; "OK" is not shouting.
func massiveCaps(content string) bool {
	letters, uppers := 0, 0
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	return letters >= 10 && uppers*10 >= letters*7
}

func toSet(domains []string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		set[domain] = struct{}{}
	}
	return set
}
