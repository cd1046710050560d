package matchmaker

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// handleConnectButton introduces a user to an ad's owner over DM. The
// click is recorded first (once per user per ad), the interaction is
// acknowledged, and only then are the DMs attempted - a DM failure never
// leaves the interaction hanging.
func (m *Matchmaker) handleConnectButton(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	adID uint,
) {
	log := m.logger.With(loggerNameKey, "connect")
	user := interactionUser(i)
	cfg := m.RuntimeConfig()

	ad, err := getAd(m.writeDB, adID)
	if err != nil {
		log.ErrorContext(ctx, "error loading ad", tint.Err(err), "ad_id", adID)
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	if ad == nil || !ad.active(time.Now()) {
		m.respondEphemeral(ctx, i, "This ad is no longer active.")
		return
	}
	if ad.OwnerID == user.ID {
		m.respondEphemeral(ctx, i, "You can't connect to your own ad.")
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

	if !m.channelLimiter.Allow(
		fmt.Sprintf("%s:%s", i.GuildID, i.ChannelID),
	) {
		m.respondEphemeral(ctx, i, cfg.DiscordRateLimitMessage)
		return
	}

	created, err := recordAdClick(m.writeDB, ad.ID, user.ID)
	if err != nil {
		log.ErrorContext(ctx, "error recording click", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	if !created {
		m.respondEphemeral(
			ctx,
			i,
			"You've already connected to this ad - check your DMs.",
		)
		return
	}

	m.respondEphemeral(
		ctx,
		i,
		fmt.Sprintf(
			"📨 Connecting you with %s - check your DMs!",
			userMention(ad.OwnerID),
		),
	)

	if err = incrementCounter(m.writeDB, counterConnects, 1); err != nil {
		log.WarnContext(ctx, "error incrementing counter", tint.Err(err))
	}

	// both DMs are best-effort; only the clicker's own failure is
	// surfaced back to them
	ownerMsg := fmt.Sprintf(
		"🎮 %s wants to join your LFG for **%s** (ad #%d)! Say hi: %s",
		user.Username,
		ad.Game,
		ad.ID,
		userMention(user.ID),
	)
	if err = m.sendDM(ctx, ad.OwnerID, ownerMsg); err != nil {
		log.WarnContext(
			ctx,
			"could not DM ad owner",
			tint.Err(err),
			"ad_id", ad.ID,
			"owner_id", ad.OwnerID,
		)
	}

	clickerMsg := fmt.Sprintf(
		"You connected to %s's LFG ad for **%s**. Send them a message: %s",
		ad.OwnerName,
		ad.Game,
		userMention(ad.OwnerID),
	)
	if err = m.sendDM(ctx, user.ID, clickerMsg); err != nil {
		log.WarnContext(
			ctx,
			"could not DM clicker",
			tint.Err(err),
			"ad_id", ad.ID,
			"user_id", user.ID,
		)
		content := "I couldn't DM you - check your privacy settings, " +
			"then press Connect again."
		if _, editErr := m.discord.session.InteractionResponseEdit(
			i.Interaction,
			&discordgo.WebhookEdit{Content: &content},
			discordgo.WithContext(ctx),
		); editErr != nil {
			log.WarnContext(ctx, "error editing response", tint.Err(editErr))
		}
	}

	log.InfoContext(
		ctx,
		"connected users",
		"ad_id", ad.ID,
		"owner_id", ad.OwnerID,
		"user_id", user.ID,
	)
}
