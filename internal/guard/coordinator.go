package guard

import (
	"context"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/actions"
	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/metrics"
	"github.com/Fl4chi/discord-smartbot/internal/modules/audit"
	"github.com/Fl4chi/discord-smartbot/internal/modules/burst"
	"github.com/Fl4chi/discord-smartbot/internal/modules/joinraid"
	"github.com/Fl4chi/discord-smartbot/internal/raidstate"
	"github.com/Fl4chi/discord-smartbot/internal/storage"

	"go.uber.org/zap"
)

const (
	burstTimeout     = 15 * time.Minute
	raidModeTimeout  = 30 * time.Minute
	raidAccountAge   = time.Hour
	banHistoryDays   = 1
	raidVerification = 4
)

// JoinEvent and MessageEvent are the tagged event variants the dispatcher
// builds before calling in; the coordinator never inspects raw gateway
// payloads.
type JoinEvent struct {
	GuildID          string
	UserID           string
	JoinedAt         time.Time
	AccountCreatedAt time.Time
	HasAvatar        bool
}

type MessageEvent struct {
	GuildID         string
	ChannelID       string
	MessageID       string
	UserID          string
	Content         string
	Mentions        int
	Timestamp       time.Time
	AuthorCreatedAt time.Time
}

// DetectionResult is returned for every checked event. Entry points always
// return a result; collaborator failures degrade to detection without
// enforcement rather than surfacing to the dispatcher.
type DetectionResult struct {
	Triggered bool
	Reason    string
	Action    string
}

// ConfigSource is the guild-configuration collaborator. A missing config
// reads as anti-raid disabled.
type ConfigSource interface {
	GuildConfig(ctx context.Context, guildID string) (storage.GuildConfig, bool, error)
}

// Coordinator owns the detectors and the raid-state store, serializes
// per-key mutation through them, and applies the escalation policy.
type Coordinator struct {
	cfg     config.Thresholds
	logger  *zap.Logger
	configs ConfigSource
	exec    actions.Executor
	exempt  actions.Exemptions
	audit   *audit.Logger
	metrics *metrics.Set

	joins  *joinraid.Module
	bursts *burst.Module
	raid   *raidstate.Store
}

func New(cfg config.Thresholds, logger *zap.Logger, configs ConfigSource, exec actions.Executor, exempt actions.Exemptions, auditLogger *audit.Logger, metricSet *metrics.Set) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		logger:  logger,
		configs: configs,
		exec:    exec,
		exempt:  exempt,
		audit:   auditLogger,
		metrics: metricSet,
		joins:   joinraid.New(cfg),
		bursts:  burst.New(cfg),
		raid:    raidstate.New(),
	}
	c.raid.SetExpiryHook(func(guildID string) {
		c.metrics.RaidModeActive.Dec()
		c.audit.LogAction(context.Background(), guildID, "", audit.ActionRaidModeOff, "raid protection auto-deactivated")
	})
	return c
}

// WithClock injects a clock into the raid-state store for deterministic
// expiry in tests.
func (c *Coordinator) WithClock(clock raidstate.Clock) {
	c.raid.WithClock(clock)
}

// CheckJoin classifies a member join. Config-disabled guilds are a strict
// no-op: nothing is recorded.
func (c *Coordinator) CheckJoin(ctx context.Context, event JoinEvent) DetectionResult {
	guildCfg, found, err := c.configs.GuildConfig(ctx, event.GuildID)
	if err != nil {
		c.logger.Warn("guild config lookup failed", zap.String("guild_id", event.GuildID), zap.Error(err))
		return DetectionResult{}
	}
	if !found || !guildCfg.AntiraidEnabled {
		return DetectionResult{}
	}

	underRaid := c.raid.IsActive(event.GuildID)
	verdict := c.joins.Observe(joinraid.Join{
		GuildID:          event.GuildID,
		UserID:           event.UserID,
		JoinedAt:         event.JoinedAt,
		AccountCreatedAt: event.AccountCreatedAt,
		HasAvatar:        event.HasAvatar,
	}, guildCfg.StrictMode, underRaid)

	if verdict.Raid {
		c.metrics.Detections.WithLabelValues("join_raid").Inc()
		if !underRaid {
			c.activate(ctx, event.GuildID, verdict.Reason)
		} else {
			c.logger.Info("raid re-triggered while active", zap.String("guild_id", event.GuildID), zap.String("reason", verdict.Reason))
		}
	}

	if verdict.BanJoiner {
		reason := "auto-ban: account created during active raid"
		err := c.exec.Ban(ctx, event.GuildID, event.UserID, reason, banHistoryDays)
		c.metrics.ObserveAction(audit.ActionBan, err)
		if err != nil {
			c.logger.Warn("ban failed", zap.String("guild_id", event.GuildID), zap.String("user_id", event.UserID), zap.Error(err))
		}
		c.audit.LogAction(ctx, event.GuildID, event.UserID, audit.ActionBan, reason)
		return DetectionResult{Triggered: true, Reason: "raid detection - new account banned", Action: "banned"}
	}
	if verdict.Raid {
		return DetectionResult{Triggered: true, Reason: "raid detection - monitoring active", Action: "raid-mode-activated"}
	}

	if verdict.KickJoiner {
		c.metrics.Detections.WithLabelValues("suspicious_join").Inc()
		reason := "auto-kick: " + verdict.KickReason
		err := c.exec.Kick(ctx, event.GuildID, event.UserID, reason)
		c.metrics.ObserveAction(audit.ActionKick, err)
		if err != nil {
			c.logger.Warn("kick failed", zap.String("guild_id", event.GuildID), zap.String("user_id", event.UserID), zap.Error(err))
		}
		c.audit.LogAction(ctx, event.GuildID, event.UserID, audit.ActionKick, reason)
		return DetectionResult{Triggered: true, Reason: "suspicious account kicked", Action: "kicked"}
	}

	return DetectionResult{}
}

// CheckMessage runs the burst detector first and short-circuits on a hit;
// otherwise, while the guild is in raid mode, messages from very new
// accounts are deleted and their authors timed out.
func (c *Coordinator) CheckMessage(ctx context.Context, event MessageEvent) DetectionResult {
	guildCfg, found, err := c.configs.GuildConfig(ctx, event.GuildID)
	if err != nil {
		c.logger.Warn("guild config lookup failed", zap.String("guild_id", event.GuildID), zap.Error(err))
		return DetectionResult{}
	}
	if !found || !guildCfg.AntiraidEnabled {
		return DetectionResult{}
	}

	verdict := c.bursts.Observe(burst.Message{
		GuildID:   event.GuildID,
		ChannelID: event.ChannelID,
		UserID:    event.UserID,
		At:        event.Timestamp,
	})
	if verdict.Triggered {
		c.metrics.Detections.WithLabelValues("message_burst").Inc()
		if verdict.NewEpisode {
			c.handleBurstEscalation(ctx, event, verdict)
		}
		return DetectionResult{Triggered: true, Reason: "message burst attack detected", Action: "timeouts + slowmode"}
	}

	if c.raid.IsActive(event.GuildID) {
		age := authorAge(event)
		if age < raidAccountAge && !c.exempt.HasModerationExemption(ctx, event.GuildID, event.UserID) {
			c.metrics.Detections.WithLabelValues("raid_mode_message").Inc()
			if err := c.exec.DeleteMessage(ctx, event.ChannelID, event.MessageID); err != nil {
				c.logger.Warn("message delete failed", zap.String("channel_id", event.ChannelID), zap.Error(err))
			}
			reason := "auto-mod: new account posting during raid"
			err := c.exec.Timeout(ctx, event.GuildID, event.UserID, raidModeTimeout, reason)
			c.metrics.ObserveAction(audit.ActionTimeout, err)
			if err != nil {
				c.logger.Warn("timeout failed", zap.String("guild_id", event.GuildID), zap.String("user_id", event.UserID), zap.Error(err))
			}
			c.audit.LogAction(ctx, event.GuildID, event.UserID, audit.ActionTimeout, reason)
			return DetectionResult{Triggered: true, Reason: "raid mode active - new account restricted", Action: "message deleted, user timed out"}
		}
	}

	return DetectionResult{}
}

func (c *Coordinator) IsUnderRaid(guildID string) bool {
	return c.raid.IsActive(guildID)
}

// ActivateRaidMode is the staff-facing manual activation.
func (c *Coordinator) ActivateRaidMode(ctx context.Context, guildID, reason string) bool {
	return c.activate(ctx, guildID, reason)
}

// DeactivateRaidMode ends raid mode early. Safe to call when inactive.
func (c *Coordinator) DeactivateRaidMode(ctx context.Context, guildID string) bool {
	if !c.raid.Deactivate(guildID) {
		return false
	}
	c.metrics.RaidModeActive.Dec()
	c.audit.LogAction(ctx, guildID, "", audit.ActionRaidModeOff, "raid protection deactivated")
	return true
}

// RaidSnapshot exposes read-only raid state for the dashboard.
func (c *Coordinator) RaidSnapshot(guildID string) (raidstate.State, bool) {
	return c.raid.Snapshot(guildID)
}

func (c *Coordinator) ActiveRaids() []raidstate.State {
	return c.raid.SnapshotAll()
}

// RecentJoins reports the guild's current join-window depth.
func (c *Coordinator) RecentJoins(guildID string, now time.Time) int {
	return c.joins.RecentJoins(guildID, now)
}

// Close stops the detectors' sweep goroutines and pending expiry timers.
func (c *Coordinator) Close() {
	c.joins.Close()
	c.bursts.Close()
	c.raid.Close()
}

func (c *Coordinator) activate(ctx context.Context, guildID, reason string) bool {
	state, transitioned := c.raid.Activate(guildID, reason)
	if !transitioned {
		return false
	}
	c.metrics.RaidModeActive.Inc()
	c.audit.LogAction(ctx, guildID, "", audit.ActionRaidModeOn, reason)
	c.logger.Warn("raid mode activated",
		zap.String("guild_id", guildID),
		zap.String("incident_id", state.IncidentID),
		zap.String("reason", reason))

	err := c.exec.SetVerificationLevel(ctx, guildID, raidVerification, "anti-raid protection activated")
	c.metrics.ObserveAction(audit.ActionVerification, err)
	if err != nil {
		c.logger.Warn("verification escalation failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	return true
}

func (c *Coordinator) handleBurstEscalation(ctx context.Context, event MessageEvent, verdict burst.Verdict) {
	for _, userID := range verdict.Flooders {
		if c.exempt.HasModerationExemption(ctx, event.GuildID, userID) {
			continue
		}
		reason := "auto-mod: coordinated message burst attack"
		err := c.exec.Timeout(ctx, event.GuildID, userID, burstTimeout, reason)
		c.metrics.ObserveAction(audit.ActionTimeout, err)
		if err != nil {
			c.logger.Warn("burst timeout failed", zap.String("guild_id", event.GuildID), zap.String("user_id", userID), zap.Error(err))
		}
		c.audit.LogAction(ctx, event.GuildID, userID, audit.ActionTimeout, reason)
	}
	if verdict.SlowMode {
		err := c.exec.SetSlowMode(ctx, event.ChannelID, c.cfg.BurstSlowModeSecs, "anti-raid: message burst detected")
		c.metrics.ObserveAction(audit.ActionSlowMode, err)
		if err != nil {
			c.logger.Warn("slow mode failed", zap.String("channel_id", event.ChannelID), zap.Error(err))
		}
		c.audit.LogAction(ctx, event.GuildID, "", audit.ActionSlowMode, "slow mode enabled after burst")
	}
}

func authorAge(event MessageEvent) time.Duration {
	if event.AuthorCreatedAt.IsZero() {
		return 0
	}
	age := event.Timestamp.Sub(event.AuthorCreatedAt)
	if age < 0 {
		return 0
	}
	return age
}
