package actions

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordExecutor applies moderation actions through a discordgo session.
type DiscordExecutor struct {
	session *discordgo.Session
	logger  *zap.Logger
}

func NewDiscordExecutor(session *discordgo.Session, logger *zap.Logger) *DiscordExecutor {
	return &DiscordExecutor{session: session, logger: logger}
}

func (e *DiscordExecutor) Ban(ctx context.Context, guildID, userID, reason string, deleteHistoryDays int) error {
	_ = ctx
	return e.session.GuildBanCreateWithReason(guildID, userID, reason, deleteHistoryDays)
}

func (e *DiscordExecutor) Kick(ctx context.Context, guildID, userID, reason string) error {
	_ = ctx
	return e.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (e *DiscordExecutor) Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error {
	_ = ctx
	_ = reason
	until := time.Now().Add(duration)
	return e.session.GuildMemberTimeout(guildID, userID, &until)
}

func (e *DiscordExecutor) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_ = ctx
	return e.session.ChannelMessageDelete(channelID, messageID)
}

// SetSlowMode enables channel rate limiting. A channel that already has
// slow mode on is left untouched.
func (e *DiscordExecutor) SetSlowMode(ctx context.Context, channelID string, seconds int, reason string) error {
	_ = ctx
	channel, err := e.session.State.Channel(channelID)
	if err != nil {
		channel, err = e.session.Channel(channelID)
	}
	if err == nil && channel.RateLimitPerUser > 0 {
		e.logger.Debug("slow mode already on", zap.String("channel_id", channelID))
		return nil
	}
	_, err = e.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
		RateLimitPerUser: &seconds,
	})
	if err == nil {
		e.logger.Info("slow mode enabled", zap.String("channel_id", channelID), zap.Int("seconds", seconds), zap.String("reason", reason))
	}
	return err
}

func (e *DiscordExecutor) SetVerificationLevel(ctx context.Context, guildID string, level int, reason string) error {
	_ = ctx
	guild, err := e.session.State.Guild(guildID)
	if err == nil && int(guild.VerificationLevel) >= level {
		return nil
	}
	verification := discordgo.VerificationLevel(level)
	_, err = e.session.GuildEdit(guildID, &discordgo.GuildParams{VerificationLevel: &verification})
	if err == nil {
		e.logger.Info("verification level raised", zap.String("guild_id", guildID), zap.Int("level", level), zap.String("reason", reason))
	}
	return err
}

// DiscordExemptions resolves moderation exemption from the member's role
// permissions via the session state, falling back to the REST API.
type DiscordExemptions struct {
	session *discordgo.Session
}

func NewDiscordExemptions(session *discordgo.Session) *DiscordExemptions {
	return &DiscordExemptions{session: session}
}

func (x *DiscordExemptions) HasModerationExemption(ctx context.Context, guildID, userID string) bool {
	_ = ctx
	member, err := x.session.State.Member(guildID, userID)
	if err != nil {
		member, err = x.session.GuildMember(guildID, userID)
		if err != nil {
			return false
		}
	}
	guild, err := x.session.State.Guild(guildID)
	if err != nil {
		return false
	}
	if guild.OwnerID == userID {
		return true
	}

	var permissions int64
	for _, roleID := range member.Roles {
		for _, role := range guild.Roles {
			if role.ID == roleID {
				permissions |= role.Permissions
			}
		}
	}
	const modBits = discordgo.PermissionAdministrator |
		discordgo.PermissionModerateMembers |
		discordgo.PermissionBanMembers |
		discordgo.PermissionKickMembers
	return permissions&modBits != 0
}
