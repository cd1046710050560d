package matchmaker

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// handleWhitelistCommand manages trusted users. Owner-only.
func (m *Matchmaker) handleWhitelistCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	log := m.logger.With(loggerNameKey, "whitelist")
	cfg := m.RuntimeConfig()
	user := interactionUser(i)

	if m.config.OwnerUserID == "" || user.ID != m.config.OwnerUserID {
		m.respondEphemeral(ctx, i, "Only the bot owner can manage the whitelist.")
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	sub := data.Options[0]

	switch sub.Name {
	case "add":
		target := subcommandOptions(sub)["user"].UserValue(nil)
		if target == nil {
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		added, err := addToWhitelist(m.writeDB, target.ID, user.ID)
		if err != nil {
			log.ErrorContext(ctx, "error adding to whitelist", tint.Err(err))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		if !added {
			m.respondEphemeral(
				ctx,
				i,
				fmt.Sprintf("%s is already whitelisted.", userMention(target.ID)),
			)
			return
		}
		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf("Whitelisted %s.", userMention(target.ID)),
		)
		log.InfoContext(
			ctx,
			"whitelist add",
			"user_id", target.ID,
			"added_by", user.ID,
		)

	case "remove":
		target := subcommandOptions(sub)["user"].UserValue(nil)
		if target == nil {
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		removed, err := removeFromWhitelist(m.writeDB, target.ID)
		if err != nil {
			log.ErrorContext(ctx, "error removing from whitelist", tint.Err(err))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		if !removed {
			m.respondEphemeral(
				ctx,
				i,
				fmt.Sprintf("%s wasn't whitelisted.", userMention(target.ID)),
			)
			return
		}
		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf("Removed %s from the whitelist.", userMention(target.ID)),
		)

	case "view":
		entries, err := listWhitelist(m.writeDB)
		if err != nil {
			log.ErrorContext(ctx, "error listing whitelist", tint.Err(err))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		if len(entries) == 0 {
			m.respondEphemeral(ctx, i, "The whitelist is empty.")
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "**%d whitelisted user(s):**\n", len(entries))
		for _, entry := range entries {
			fmt.Fprintf(&b, "• %s\n", userMention(entry.UserID))
		}
		m.respondEphemeral(ctx, i, b.String())

	default:
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
	}
}

// handleAllowlistCommand manages the staging guild allowlist. Only
// meaningful in the staging environment.
func (m *Matchmaker) handleAllowlistCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	log := m.logger.With(loggerNameKey, "allowlist")
	cfg := m.RuntimeConfig()

	if m.config.Environment != EnvironmentStaging {
		m.respondEphemeral(
			ctx,
			i,
			"The allowlist only applies to the staging environment.",
		)
		return
	}
	if !m.isModerator(i) {
		m.respondEphemeral(ctx, i, "You don't have permission to do that.")
		return
	}

	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	sub := data.Options[0]
	user := interactionUser(i)

	guildID := i.GuildID
	if opt, ok := subcommandOptions(sub)["guild_id"]; ok {
		guildID = strings.TrimSpace(opt.StringValue())
	}

	switch sub.Name {
	case "add":
		if guildID == "" {
			m.respondEphemeral(ctx, i, "A guild ID is required.")
			return
		}
		err := allowGuild(m.writeDB, guildID, m.config.Environment, user.ID)
		if err != nil {
			log.ErrorContext(ctx, "error allowing guild", tint.Err(err))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf("Guild `%s` is now allowed in staging.", guildID),
		)
		log.InfoContext(
			ctx,
			"guild allowed",
			"guild_id", guildID,
			"added_by", user.ID,
		)

	case "remove":
		if guildID == "" {
			m.respondEphemeral(ctx, i, "A guild ID is required.")
			return
		}
		removed, err := disallowGuild(m.writeDB, guildID, m.config.Environment)
		if err != nil {
			log.ErrorContext(ctx, "error disallowing guild", tint.Err(err))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		if !removed {
			m.respondEphemeral(
				ctx,
				i,
				fmt.Sprintf("Guild `%s` wasn't on the allowlist.", guildID),
			)
			return
		}
		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf("Guild `%s` removed from the allowlist.", guildID),
		)

	case "list":
		var guilds []AllowedGuild
		err := m.db.Where(
			"environment = ?",
			m.config.Environment,
		).Find(&guilds).Error
		if err != nil {
			log.ErrorContext(ctx, "error listing allowed guilds", tint.Err(err))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		if len(guilds) == 0 {
			m.respondEphemeral(ctx, i, "No guilds are allowlisted.")
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "**%d allowed guild(s):**\n", len(guilds))
		for _, g := range guilds {
			fmt.Fprintf(&b, "• `%s`\n", g.GuildID)
		}
		m.respondEphemeral(ctx, i, b.String())

	default:
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
	}
}
