package matchmaker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// handleStatusCommand reports uptime, latency, and counters.
func (m *Matchmaker) handleStatusCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	log := m.logger.With(loggerNameKey, "status")

	var guildCount int64
	if err := m.db.Model(&BotGuild{}).Count(&guildCount).Error; err != nil {
		log.WarnContext(ctx, "error counting guilds", tint.Err(err))
	}

	var activeAds int64
	err := m.db.Model(&Ad{}).Where(
		"status = ? AND expires_at > ?",
		AdStatusActive,
		time.Now().UnixMilli(),
	).Count(&activeAds).Error
	if err != nil {
		log.WarnContext(ctx, "error counting ads", tint.Err(err))
	}

	adsPosted, _ := counterValue(m.writeDB, counterAdsPosted)
	connects, _ := counterValue(m.writeDB, counterConnects)
	reports, _ := counterValue(m.writeDB, counterReports)

	var b strings.Builder
	fmt.Fprintf(&b, "**Matchmaker %s**\n", Version)
	fmt.Fprintf(&b, "Uptime: %s\n", humanDuration(time.Since(m.startedAt)))
	fmt.Fprintf(
		&b,
		"Gateway latency: %dms\n",
		m.discord.session.HeartbeatLatency().Milliseconds(),
	)
	fmt.Fprintf(&b, "Servers: %d\n", guildCount)
	fmt.Fprintf(&b, "Active ads: %d\n", activeAds)
	fmt.Fprintf(
		&b,
		"All-time: %d ads, %d connections, %d reports",
		adsPosted,
		connects,
		reports,
	)

	m.respondEphemeral(ctx, i, b.String())
}
