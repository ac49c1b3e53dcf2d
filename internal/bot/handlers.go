package bot

import (
	"context"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/automod"
	"github.com/Fl4chi/discord-smartbot/internal/guard"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	_ = session

	joinedAt := event.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now()
	}

	result := b.guard.CheckJoin(context.Background(), guard.JoinEvent{
		GuildID:          event.GuildID,
		UserID:           event.User.ID,
		JoinedAt:         joinedAt,
		AccountCreatedAt: accountCreatedAt(event.User.ID),
		HasAvatar:        event.User.Avatar != "",
	})
	if result.Triggered {
		b.logger.Info("join flagged",
			zap.String("guild_id", event.GuildID),
			zap.String("user_id", event.User.ID),
			zap.String("reason", result.Reason),
			zap.String("action", result.Action))
	}
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	_ = session

	ctx := context.Background()
	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	result := b.guard.CheckMessage(ctx, guard.MessageEvent{
		GuildID:         msg.GuildID,
		ChannelID:       msg.ChannelID,
		MessageID:       msg.ID,
		UserID:          msg.Author.ID,
		Content:         msg.Content,
		Mentions:        len(msg.Mentions),
		Timestamp:       at,
		AuthorCreatedAt: accountCreatedAt(msg.Author.ID),
	})
	if result.Triggered {
		b.logger.Info("message flagged",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.Author.ID),
			zap.String("reason", result.Reason),
			zap.String("action", result.Action))
		return
	}

	if verdict := b.automod.HandleMessage(ctx, automod.Message{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		UserID:    msg.Author.ID,
		Content:   msg.Content,
		Mentions:  len(msg.Mentions),
		At:        at,
	}); verdict.Flagged {
		return
	}

	if b.xpEnabled(ctx, msg.GuildID) {
		b.xp.HandleMessage(ctx, msg.GuildID, msg.Author.ID)
	}
}

func (b *Bot) xpEnabled(ctx context.Context, guildID string) bool {
	cfg, found, err := b.configs.GuildConfig(ctx, guildID)
	if err != nil || !found {
		return false
	}
	return cfg.XPEnabled
}

// accountCreatedAt derives the account-creation time from the user ID. An
// unparseable ID reads as unknown (zero time).
func accountCreatedAt(userID string) time.Time {
	ts, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return time.Time{}
	}
	return ts
}
