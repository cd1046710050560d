package matchmaker

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// handleLFGCommand routes /lfg subcommands.
func (m *Matchmaker) handleLFGCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		m.respondEphemeral(ctx, i, m.RuntimeConfig().DiscordErrorMessage)
		return
	}
	switch data.Options[0].Name {
	case "post":
		m.handleLFGPost(ctx, i, data.Options[0])
	default:
		m.respondEphemeral(ctx, i, m.RuntimeConfig().DiscordErrorMessage)
	}
}

// handleLFGPost creates an ad and fans it out. The ad row is written and
// the interaction acknowledged before the broadcast runs; the ephemeral
// response is edited with the fan-out summary once it finishes.
func (m *Matchmaker) handleLFGPost(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	sub *discordgo.ApplicationCommandInteractionDataOption,
) {
	log := m.logger.With(loggerNameKey, "lfg_post")
	cfg := m.RuntimeConfig()
	user := interactionUser(i)
	now := time.Now()

	if i.GuildID == "" {
		m.respondEphemeral(ctx, i, "LFG ads can only be posted from a server.")
		return
	}

	allowed, err := guildAllowed(m.writeDB, i.GuildID, m.config.Environment)
	if err != nil {
		log.ErrorContext(ctx, "error checking allowed guilds", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	if !allowed {
		m.respondEphemeral(ctx, i, "This server isn't enabled for this bot.")
		return
	}

	dbUser, _, err := m.writeDB.GetOrCreateUser(ctx, *user)
	if err != nil {
		log.ErrorContext(ctx, "error loading user", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	if dbUser.Ignored {
		return
	}

	enforcement, err := activeEnforcement(m.writeDB, user.ID, i.GuildID)
	if err != nil {
		log.ErrorContext(ctx, "error checking enforcement", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	if enforcement != nil {
		m.respondEphemeral(ctx, i, enforcement.enforcementNotice())
		return
	}

	whitelisted, err := isWhitelisted(m.writeDB, user.ID)
	if err != nil {
		log.ErrorContext(ctx, "error checking whitelist", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}

	if !whitelisted {
		coolingDown, until, cdErr := checkPostCooldown(m.writeDB, user.ID, now)
		if cdErr != nil {
			log.ErrorContext(ctx, "error checking cooldown", tint.Err(cdErr))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		if coolingDown {
			m.respondEphemeral(
				ctx,
				i,
				fmt.Sprintf(
					"You can post your next ad <t:%d:R>.",
					until.Unix(),
				),
			)
			return
		}

		activeCount, countErr := activeAdCount(m.writeDB, user.ID, now)
		if countErr != nil {
			log.ErrorContext(ctx, "error counting ads", tint.Err(countErr))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		if activeCount >= int64(cfg.AdsPerUserLimit) {
			m.respondEphemeral(
				ctx,
				i,
				fmt.Sprintf(
					"You already have %d active ad(s) - wait for one to "+
						"expire first.",
					activeCount,
				),
			)
			return
		}
	}

	opts := subcommandOptions(sub)
	game := opts["game"].StringValue()
	notes := opts["notes"].StringValue()

	ttl := cfg.AdTTL.Duration
	if hours, ok := opts["hours"]; ok {
		ttl = time.Duration(hours.IntValue()) * time.Hour
	}
	notify := false
	if n, ok := opts["notify"]; ok {
		notify = n.BoolValue()
	}

	ad := NewAd(dbUser, i.GuildID, i.ChannelID, game, notes, ttl, notify)
	if _, err = m.writeDB.Create(ad); err != nil {
		log.ErrorContext(ctx, "error creating ad", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}

	if !whitelisted {
		if err = setPostCooldown(
			m.writeDB,
			user.ID,
			now,
			cfg.PostCooldown.Duration,
		); err != nil {
			log.WarnContext(ctx, "error setting cooldown", tint.Err(err))
		}
	}

	m.respondEphemeral(
		ctx,
		i,
		fmt.Sprintf("📣 Broadcasting your ad for **%s**...", game),
	)

	if err = incrementCounter(m.writeDB, counterAdsPosted, 1); err != nil {
		log.WarnContext(ctx, "error incrementing counter", tint.Err(err))
	}

	result, err := m.broadcastAd(ctx, ad)
	if err != nil {
		log.ErrorContext(ctx, "broadcast failed", tint.Err(err), "ad_id", ad.ID)
	}

	summary := fmt.Sprintf(
		"✅ Your ad for **%s** (ad #%d) reached %d server(s). It expires <t:%d:R>.",
		game,
		ad.ID,
		result.Sent,
		ad.ExpiresAt/1000,
	)
	if result.Targets == 0 {
		summary = fmt.Sprintf(
			"Your ad for **%s** was saved, but no servers have an LFG "+
				"channel configured yet.",
			game,
		)
	} else if result.Failed > 0 {
		summary = fmt.Sprintf(
			"%s (%d server(s) couldn't be reached.)",
			summary,
			result.Failed,
		)
	}
	if _, err = m.discord.session.InteractionResponseEdit(
		i.Interaction,
		&discordgo.WebhookEdit{Content: &summary},
		discordgo.WithContext(ctx),
	); err != nil {
		log.WarnContext(ctx, "error editing response", tint.Err(err))
	}

	log.InfoContext(ctx, "ad posted", adLogAttrs(*ad)...)
}
