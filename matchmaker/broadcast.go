package matchmaker

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// broadcastResult summarizes an ad fan-out.
type broadcastResult struct {
	// Targets is the number of guilds with a configured LFG channel.
	Targets int
	// Sent is the number of copies successfully posted.
	Sent int
	// Failed is the number of sends that errored or timed out.
	Failed int
}

// broadcastAd fans an ad out to every configured LFG channel. Sends are
// bounded by the runtime config's concurrency limit, paced by a shared
// rate limiter, and individually capped by the send timeout. A failed
// send never aborts the rest of the fan-out.
func (m *Matchmaker) broadcastAd(ctx context.Context, ad *Ad) (broadcastResult, error) {
	log := m.logger.With(loggerNameKey, "broadcast")
	cfg := m.RuntimeConfig()

	targets, err := broadcastTargets(m.writeDB)
	if err != nil {
		return broadcastResult{}, err
	}

	result := broadcastResult{Targets: len(targets)}
	if len(targets) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(
		rate.Limit(cfg.BroadcastRatePerSecond),
		cfg.BroadcastRatePerSecond,
	)
	sent := make(chan AdPost, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.BroadcastConcurrency)

	started := time.Now()
	for _, target := range targets {
		target := target
		g.Go(
			func() error {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}

				sendCtx, cancel := context.WithTimeout(
					gctx,
					cfg.BroadcastSendTimeout.Duration,
				)
				defer cancel()

				msg, sendErr := m.discord.session.ChannelMessageSendComplex(
					target.LFGChannelID,
					&discordgo.MessageSend{
						Embeds:     []*discordgo.MessageEmbed{adEmbed(ad)},
						Components: adComponents(ad.ID, false),
					},
					discordgo.WithContext(sendCtx),
				)
				if sendErr != nil {
					log.WarnContext(
						gctx,
						"broadcast send failed",
						tint.Err(sendErr),
						"ad_id", ad.ID,
						"guild_id", target.GuildID,
						"channel_id", target.LFGChannelID,
					)
					return nil
				}

				sent <- AdPost{
					AdID:      ad.ID,
					GuildID:   target.GuildID,
					ChannelID: target.LFGChannelID,
					MessageID: msg.ID,
				}
				return nil
			},
		)
	}

	// the only error surfaced by workers is group context cancellation
	groupErr := g.Wait()
	close(sent)

	posts := make([]AdPost, 0, len(targets))
	for post := range sent {
		posts = append(posts, post)
	}
	result.Sent = len(posts)
	result.Failed = result.Targets - result.Sent

	if len(posts) > 0 {
		if _, err = m.writeDB.Create(&posts); err != nil {
			return result, fmt.Errorf("error recording broadcast posts: %w", err)
		}
	}

	log.InfoContext(
		ctx,
		"broadcast finished",
		"ad_id", ad.ID,
		"targets", result.Targets,
		"sent", result.Sent,
		"failed", result.Failed,
		"elapsed", time.Since(started),
	)

	if groupErr != nil && ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}
