package actions

import (
	"context"
	"time"
)

// Executor is the moderation-action collaborator. Detection never depends
// on these calls succeeding; failures are reported back, logged by the
// caller and otherwise dropped.
type Executor interface {
	Ban(ctx context.Context, guildID, userID, reason string, deleteHistoryDays int) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SetSlowMode(ctx context.Context, channelID string, seconds int, reason string) error
	SetVerificationLevel(ctx context.Context, guildID string, level int, reason string) error
}

// Exemptions answers whether a user holds moderation rights and is
// therefore never targeted by automatic actions.
type Exemptions interface {
	HasModerationExemption(ctx context.Context, guildID, userID string) bool
}
