package matchmaker

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// handleTimeoutCommand applies, replaces, or clears a guild-scoped
// timeout from the /lfg-timeout slash command.
func (m *Matchmaker) handleTimeoutCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	log := m.logger.With(loggerNameKey, "moderation")
	cfg := m.RuntimeConfig()

	if i.GuildID == "" {
		m.respondEphemeral(ctx, i, "This command only works in a server.")
		return
	}
	if !m.isModerator(i) {
		m.respondEphemeral(ctx, i, "You don't have permission to do that.")
		return
	}

	opts := discordInteractionOptions(i)
	target := opts["user"].UserValue(nil)
	if target == nil {
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	minutes := int(opts["minutes"].IntValue())
	reason := ""
	if r, ok := opts["reason"]; ok {
		reason = r.StringValue()
	}
	moderator := interactionUser(i)

	if target.ID == moderator.ID {
		m.respondEphemeral(ctx, i, "You can't time yourself out.")
		return
	}

	d := time.Duration(minutes) * time.Minute
	if minutes < 0 {
		d = -1
	}

	enforcement, err := applyEnforcement(
		m.writeDB,
		target.ID,
		i.GuildID,
		EnforcementTimeout,
		d,
		reason,
		moderator.ID,
	)
	if err != nil {
		log.ErrorContext(ctx, "error applying timeout", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}

	if enforcement == nil {
		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf(
				"Cleared any Matchmaker timeout for %s in this server.",
				userMention(target.ID),
			),
		)
		log.InfoContext(
			ctx,
			"timeout cleared",
			"user_id", target.ID,
			"guild_id", i.GuildID,
			"moderator_id", moderator.ID,
		)
		return
	}

	m.respondEphemeral(
		ctx,
		i,
		fmt.Sprintf(
			"Timed out %s from Matchmaker in this server (%s).",
			userMention(target.ID),
			timeoutSummary(minutes),
		),
	)
	_ = m.sendDM(ctx, target.ID, enforcement.enforcementNotice())

	log.InfoContext(ctx, "timeout applied", "enforcement", *enforcement)
}

// handleTimeoutStatusCommand reports a user's active enforcement, if any.
func (m *Matchmaker) handleTimeoutStatusCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	log := m.logger.With(loggerNameKey, "moderation")
	cfg := m.RuntimeConfig()

	if i.GuildID == "" {
		m.respondEphemeral(ctx, i, "This command only works in a server.")
		return
	}
	if !m.isModerator(i) {
		m.respondEphemeral(ctx, i, "You don't have permission to do that.")
		return
	}

	opts := discordInteractionOptions(i)
	target := opts["user"].UserValue(nil)
	if target == nil {
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}

	enforcement, err := activeEnforcement(m.writeDB, target.ID, i.GuildID)
	if err != nil {
		log.ErrorContext(ctx, "error checking enforcement", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	if enforcement == nil {
		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf(
				"%s has no active Matchmaker timeout or ban.",
				userMention(target.ID),
			),
		)
		return
	}

	scope := "in this server"
	if enforcement.GuildID == guildScopeGlobal {
		scope = "bot-wide"
	}
	expiry := "indefinitely"
	if enforcement.ExpiresAt != nil {
		expiry = fmt.Sprintf("until <t:%d:f>", *enforcement.ExpiresAt/1000)
	}
	reason := enforcement.Reason
	if reason == "" {
		reason = "no reason recorded"
	}
	m.respondEphemeral(
		ctx,
		i,
		fmt.Sprintf(
			"%s is under a **%s** %s, %s (%s).",
			userMention(target.ID),
			enforcement.Kind,
			scope,
			expiry,
			reason,
		),
	)
}
