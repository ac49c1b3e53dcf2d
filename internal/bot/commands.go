package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/modules/audit"
	"github.com/Fl4chi/discord-smartbot/internal/storage"
	"github.com/Fl4chi/discord-smartbot/internal/xp"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) registerCommands() error {
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, "", commandDefinitions())
	return err
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "raidmode",
			Description: "Control raid protection mode",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "activate, deactivate, or status",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "activate", Value: "activate"},
						{Name: "deactivate", Value: "deactivate"},
						{Name: "status", Value: "status"},
					},
				},
			},
		},
		{
			Name:        "antiraid",
			Description: "Configure anti-raid protection",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "setting",
					Description: "enable, disable, strict, or normal",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "enable", Value: "enable"},
						{Name: "disable", Value: "disable"},
						{Name: "strict", Value: "strict"},
						{Name: "normal", Value: "normal"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "modlog",
					Description: "channel for moderation notices",
					Required:    false,
				},
			},
		},
		{
			Name:        "blocklist",
			Description: "Manage the blocked link domains",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "domain",
					Description: "domain to add or remove",
					Required:    false,
				},
			},
		},
		{
			Name:        "modlog",
			Description: "Show recent moderation actions",
		},
		{
			Name:        "stats",
			Description: "Show moderation stats for this server",
		},
		{
			Name:        "xp",
			Description: "Show your XP and level",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "preference",
					Description: "opt out of or back into XP tracking",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "optout", Value: "optout"},
						{Name: "optin", Value: "optin"},
					},
				},
			},
		},
		{
			Name:        "leaderboard",
			Description: "Show the XP leaderboard",
		},
	}
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "raidmode":
		b.handleRaidMode(ctx, session, interaction, data.Options)
	case "antiraid":
		b.handleAntiraidConfig(ctx, session, interaction, data.Options)
	case "blocklist":
		b.handleBlocklist(ctx, session, interaction, data.Options)
	case "modlog":
		b.handleModlog(ctx, session, interaction)
	case "stats":
		b.handleStats(ctx, session, interaction)
	case "xp":
		b.handleXP(ctx, session, interaction, data.Options)
	case "leaderboard":
		b.handleLeaderboard(ctx, session, interaction)
	}
}

func (b *Bot) handleRaidMode(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if !b.isModerator(interaction) {
		b.respond(session, interaction, "You need moderation permissions for this command.", true)
		return
	}
	if len(options) == 0 {
		return
	}

	guildID := interaction.GuildID
	switch options[0].StringValue() {
	case "activate":
		if !b.guard.ActivateRaidMode(ctx, guildID, "manually activated") {
			b.respond(session, interaction, "Raid mode is already active.", true)
			return
		}
		b.respond(session, interaction, "Raid mode activated. New accounts are now restricted for 30 minutes.", false)
	case "deactivate":
		if !b.guard.DeactivateRaidMode(ctx, guildID) {
			b.respond(session, interaction, "Raid mode is not active.", true)
			return
		}
		b.respond(session, interaction, "Raid mode deactivated.", false)
	case "status":
		if !b.guard.IsUnderRaid(guildID) {
			b.respond(session, interaction, "Raid mode is inactive.", true)
			return
		}
		state, ok := b.guard.RaidSnapshot(guildID)
		if !ok {
			b.respond(session, interaction, "Raid mode is inactive.", true)
			return
		}
		remaining := time.Until(state.AutoExpireAt).Round(time.Second)
		b.respond(session, interaction, fmt.Sprintf("Raid mode active (%s). Expires in %s. Incident %s.", state.Reason, remaining, state.IncidentID), true)
	}
}

func (b *Bot) handleAntiraidConfig(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if !b.isModerator(interaction) {
		b.respond(session, interaction, "You need moderation permissions for this command.", true)
		return
	}
	if len(options) == 0 {
		return
	}

	guildID := interaction.GuildID
	cfg, found, err := b.configs.GuildConfig(ctx, guildID)
	if err != nil {
		b.respond(session, interaction, "Configuration is temporarily unavailable.", true)
		return
	}
	if !found {
		cfg = storage.GuildConfig{GuildID: guildID, XPEnabled: b.cfg.XP.Enabled}
	}

	switch options[0].StringValue() {
	case "enable":
		cfg.AntiraidEnabled = true
	case "disable":
		cfg.AntiraidEnabled = false
	case "strict":
		cfg.AntiraidEnabled = true
		cfg.StrictMode = true
	case "normal":
		cfg.StrictMode = false
	}
	for _, opt := range options[1:] {
		if opt.Name == "modlog" {
			if channel := opt.ChannelValue(session); channel != nil {
				cfg.ModlogChannel = channel.ID
			}
		}
	}

	if err := b.configs.Upsert(ctx, cfg); err != nil {
		b.respond(session, interaction, "Saving the configuration failed.", true)
		return
	}

	b.audit.LogAction(ctx, guildID, interactionUserID(interaction), audit.ActionConfig,
		"anti-raid configuration changed: "+options[0].StringValue())
	b.respond(session, interaction, fmt.Sprintf("Anti-raid: enabled=%t strict=%t.", cfg.AntiraidEnabled, cfg.StrictMode), true)
}

func (b *Bot) handleBlocklist(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if !b.isModerator(interaction) {
		b.respond(session, interaction, "You need moderation permissions for this command.", true)
		return
	}
	if len(options) == 0 {
		return
	}

	guildID := interaction.GuildID
	domain := ""
	for _, opt := range options[1:] {
		if opt.Name == "domain" {
			domain = strings.TrimSpace(opt.StringValue())
		}
	}

	action := options[0].StringValue()
	if action != "list" && domain == "" {
		b.respond(session, interaction, "A domain is required for add and remove.", true)
		return
	}

	switch action {
	case "add":
		if err := b.store.AddDomainBlock(ctx, guildID, domain); err != nil {
			b.respond(session, interaction, "Saving the blocklist failed.", true)
			return
		}
		b.audit.LogAction(ctx, guildID, interactionUserID(interaction), audit.ActionConfig, "blocklist add: "+domain)
		b.respond(session, interaction, fmt.Sprintf("Blocked links to `%s`.", strings.ToLower(domain)), true)
	case "remove":
		if err := b.store.RemoveDomainBlock(ctx, guildID, domain); err != nil {
			b.respond(session, interaction, "Saving the blocklist failed.", true)
			return
		}
		b.audit.LogAction(ctx, guildID, interactionUserID(interaction), audit.ActionConfig, "blocklist remove: "+domain)
		b.respond(session, interaction, fmt.Sprintf("Unblocked links to `%s`.", strings.ToLower(domain)), true)
	case "list":
		domains, err := b.store.ListDomainBlock(ctx, guildID)
		if err != nil {
			b.respond(session, interaction, "The blocklist is temporarily unavailable.", true)
			return
		}
		if len(domains) == 0 {
			b.respond(session, interaction, "The blocklist is empty.", true)
			return
		}
		b.respond(session, interaction, "Blocked domains:\n"+strings.Join(domains, "\n"), true)
	}
}

func (b *Bot) handleModlog(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.isModerator(interaction) {
		b.respond(session, interaction, "You need moderation permissions for this command.", true)
		return
	}

	logs, err := b.store.ListModerationLogs(ctx, interaction.GuildID, time.Now().AddDate(0, 0, -7))
	if err != nil {
		b.respond(session, interaction, "The moderation log is temporarily unavailable.", true)
		return
	}
	if len(logs) == 0 {
		b.respond(session, interaction, "No moderation actions in the last 7 days.", true)
		return
	}

	b.respondEmbed(session, interaction, &discordgo.MessageEmbed{
		Title:       "Moderation log (7d)",
		Description: strings.Join(modlogLines(logs, 10), "\n"),
		Color:       0xe74c3c,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}, true)
}

// modlogLines renders newest-first log entries, at most limit of them.
func modlogLines(logs []storage.ModerationLog, limit int) []string {
	if len(logs) > limit {
		logs = logs[:limit]
	}
	lines := make([]string, 0, len(logs))
	for _, log := range logs {
		lines = append(lines, fmt.Sprintf("`%s` %s <@%s> - %s",
			log.CreatedAt.UTC().Format("Jan 02 15:04"), log.Action, log.UserID, log.Details))
	}
	return lines
}

func (b *Bot) handleStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	guildID := interaction.GuildID
	counts, err := b.store.CountModerationLogs(ctx, guildID, time.Now().AddDate(0, 0, -7))
	if err != nil {
		b.respond(session, interaction, "Stats are temporarily unavailable.", true)
		return
	}

	total := 0
	lines := make([]string, 0, len(counts))
	for action, count := range counts {
		total += count
		lines = append(lines, fmt.Sprintf("%s: %d", action, count))
	}
	body := "No moderation actions in the last 7 days."
	if total > 0 {
		body = strings.Join(lines, "\n")
	}

	raidStatus := "inactive"
	if b.guard.IsUnderRaid(guildID) {
		raidStatus = "active"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Raid mode", Value: raidStatus, Inline: true},
		{Name: "Recent joins", Value: fmt.Sprintf("%d", b.guard.RecentJoins(guildID, time.Now())), Inline: true},
		{Name: "Actions (7d)", Value: body, Inline: false},
	}
	b.respondEmbed(session, interaction, &discordgo.MessageEmbed{
		Title:     "Server moderation stats",
		Color:     0x3498db,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Fields:    fields,
	}, true)
}

func (b *Bot) handleXP(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	userID := interactionUserID(interaction)
	if userID == "" {
		return
	}

	for _, opt := range options {
		if opt.Name != "preference" {
			continue
		}
		optOut := opt.StringValue() == "optout"
		if err := b.store.SetXPOptOut(ctx, interaction.GuildID, userID, optOut); err != nil {
			b.respond(session, interaction, "Saving your preference failed.", true)
			return
		}
		if optOut {
			b.respond(session, interaction, "You are now opted out of XP tracking.", true)
		} else {
			b.respond(session, interaction, "You are now earning XP again.", true)
		}
		return
	}

	record, err := b.store.GetXP(ctx, interaction.GuildID, userID)
	if err != nil {
		b.respond(session, interaction, "XP is temporarily unavailable.", true)
		return
	}
	level := xp.Level(record.XP)
	b.respond(session, interaction, fmt.Sprintf("Level %d with %d XP (%d to next level).", level, record.XP, xp.NextLevelXP(record.XP)-record.XP), true)
}

func (b *Bot) handleLeaderboard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	records, err := b.store.Leaderboard(ctx, interaction.GuildID, 10)
	if err != nil {
		b.respond(session, interaction, "The leaderboard is temporarily unavailable.", true)
		return
	}
	if len(records) == 0 {
		b.respond(session, interaction, "Nobody has earned XP yet.", true)
		return
	}

	lines := make([]string, 0, len(records))
	for i, record := range records {
		lines = append(lines, fmt.Sprintf("%d. <@%s> - level %d (%d XP)", i+1, record.UserID, xp.Level(record.XP), record.XP))
	}
	b.respondEmbed(session, interaction, &discordgo.MessageEmbed{
		Title:       "XP leaderboard",
		Description: strings.Join(lines, "\n"),
		Color:       0xf1c40f,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}, false)
}

func (b *Bot) isModerator(interaction *discordgo.InteractionCreate) bool {
	if interaction.Member == nil {
		return false
	}
	perms := interaction.Member.Permissions
	return perms&(discordgo.PermissionAdministrator|discordgo.PermissionModerateMembers|discordgo.PermissionBanMembers) != 0
}

func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}
