package audit

import (
	"context"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/storage"

	"go.uber.org/zap"
)

const (
	ActionRaidModeOn   = "raid_mode_activated"
	ActionRaidModeOff  = "raid_mode_deactivated"
	ActionBan          = "ban"
	ActionKick         = "kick"
	ActionTimeout      = "timeout"
	ActionDelete       = "delete"
	ActionSlowMode     = "slowmode"
	ActionWarn         = "warn"
	ActionVerification = "verification_level"
	ActionConfig       = "config_change"
)

// Logger is the fire-and-forget audit sink: every moderation decision is
// written to the store, mirrored to the process log, and optionally pushed
// to a notifier (modlog channel). Store failures never propagate.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.ModerationLog)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.ModerationLog)) {
	l.notify = notify
}

func (l *Logger) LogAction(ctx context.Context, guildID, userID, action, details string) {
	entry := storage.ModerationLog{
		GuildID:     guildID,
		UserID:      userID,
		ModeratorID: "SYSTEM",
		Action:      action,
		Details:     details,
		CreatedAt:   time.Now(),
	}
	if l.store != nil {
		if err := l.store.AddModerationLog(ctx, entry); err != nil {
			l.logger.Warn("moderation log write failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("moderation",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("action", action),
		zap.String("details", details))
}
