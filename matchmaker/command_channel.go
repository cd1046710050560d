package matchmaker

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// handleLFGChannelCommand manages a guild's broadcast channel.
func (m *Matchmaker) handleLFGChannelCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	log := m.logger.With(loggerNameKey, "lfg_channel")
	cfg := m.RuntimeConfig()

	if i.GuildID == "" {
		m.respondEphemeral(ctx, i, "This command only works in a server.")
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

	switch sub.Name {
	case "set":
		opts := subcommandOptions(sub)
		channel := opts["channel"].ChannelValue(nil)
		if channel == nil {
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		if err := setLFGChannel(m.writeDB, i.GuildID, channel.ID, user.ID); err != nil {
			log.ErrorContext(ctx, "error setting channel", tint.Err(err))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf("LFG ads will now be posted to <#%s>.", channel.ID),
		)
		log.InfoContext(
			ctx,
			"lfg channel set",
			"guild_id", i.GuildID,
			"channel_id", channel.ID,
			"updated_by", user.ID,
		)

	case "show":
		settings, err := getGuildSettings(m.writeDB, i.GuildID)
		if err != nil {
			log.ErrorContext(ctx, "error loading settings", tint.Err(err))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		if settings.LFGChannelID == "" {
			m.respondEphemeral(
				ctx,
				i,
				"No LFG channel is configured. Use `/lfg-channel set`.",
			)
			return
		}
		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf(
				"LFG ads are posted to <#%s>.",
				settings.LFGChannelID,
			),
		)

	case "clear":
		if err := setLFGChannel(m.writeDB, i.GuildID, "", user.ID); err != nil {
			log.ErrorContext(ctx, "error clearing channel", tint.Err(err))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		m.respondEphemeral(
			ctx,
			i,
			"This server will no longer receive LFG broadcasts.",
		)
		log.InfoContext(
			ctx,
			"lfg channel cleared",
			"guild_id", i.GuildID,
			"updated_by", user.ID,
		)

	default:
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
	}
}
