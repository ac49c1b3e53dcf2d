// Package bot owns the Discord session: it translates gateway events into
// the detector pipeline's inputs and serves the slash-command surface.
package bot

import (
	"context"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/automod"
	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/guard"
	"github.com/Fl4chi/discord-smartbot/internal/guildcache"
	"github.com/Fl4chi/discord-smartbot/internal/modules/audit"
	"github.com/Fl4chi/discord-smartbot/internal/storage"
	"github.com/Fl4chi/discord-smartbot/internal/xp"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *storage.Store
	configs *guildcache.Cache
	guard   *guard.Coordinator
	automod *automod.Module
	xp      *xp.Service
	audit   *audit.Logger
	session *discordgo.Session
}

// New opens the session shell without the moderation pipeline; Attach wires
// it in once the collaborators that need the session exist.
func New(cfg config.Config, logger *zap.Logger, store *storage.Store, configs *guildcache.Cache, auditLogger *audit.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		configs: configs,
		audit:   auditLogger,
		session: session,
	}

	if b.audit != nil {
		b.audit.SetNotifier(b.notifyModlog)
	}

	return b, nil
}

func (b *Bot) Attach(coordinator *guard.Coordinator, autoMod *automod.Module, xpService *xp.Service) {
	b.guard = coordinator
	b.automod = autoMod
	b.xp = xpService
}

// Session exposes the underlying discordgo session for executor wiring.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", len(event.Guilds)))
}

// notifyModlog mirrors moderation-log entries to the guild's modlog channel
// when one is configured.
func (b *Bot) notifyModlog(ctx context.Context, entry storage.ModerationLog) {
	channelID := b.cfg.DefaultModlogChan
	if cfg, found, err := b.configs.GuildConfig(ctx, entry.GuildID); err == nil && found && cfg.ModlogChannel != "" {
		channelID = cfg.ModlogChannel
	}
	if channelID == "" {
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Action", Value: entry.Action, Inline: true},
	}
	if entry.UserID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "User", Value: "<@" + entry.UserID + ">", Inline: true})
	}
	if entry.Details != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: entry.Details, Inline: false})
	}
	_, _ = b.session.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:     "Moderation",
		Color:     0xe74c3c,
		Timestamp: entry.CreatedAt.UTC().Format(time.RFC3339),
		Fields:    fields,
	})
}
