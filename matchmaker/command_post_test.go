package matchmaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lfgPostInteraction builds a /lfg post invocation. Option values mirror
// what the gateway delivers: JSON numbers arrive as float64.
func lfgPostInteraction(
	userID string,
	guildID string,
	game string,
	notes string,
	extra ...*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.InteractionCreate {
	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{
			Type:  discordgo.ApplicationCommandOptionString,
			Name:  "game",
			Value: game,
		},
		{
			Type:  discordgo.ApplicationCommandOptionString,
			Name:  "notes",
			Value: notes,
		},
	}
	options = append(options, extra...)
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        fmt.Sprintf("interaction-%s-lfg-post", userID),
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   guildID,
			ChannelID: "origin-chan",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: userID, Username: "user-" + userID},
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: commandLFG,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{
						Type:    discordgo.ApplicationCommandOptionSubCommand,
						Name:    "post",
						Options: options,
					},
				},
			},
		},
	}
}

func TestLFGPostCreatesAdAndBroadcasts(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ctx := context.Background()
	seedBroadcastTargets(t, m.writeDB, 2)

	i := lfgPostInteraction("poster", "origin-guild", "Apex Legends", "EU, mic")
	m.handleLFGCommand(ctx, i)

	var ad Ad
	require.NoError(t, m.db.Last(&ad).Error)
	assert.Equal(t, "poster", ad.OwnerID)
	assert.Equal(t, "Apex Legends", ad.Game)
	assert.Equal(t, "EU, mic", ad.Notes)
	assert.Equal(t, AdStatusActive, ad.Status)
	assert.Equal(t, "origin-guild", ad.GuildID)

	var posts []AdPost
	require.NoError(t, m.db.Where("ad_id = ?", ad.ID).Find(&posts).Error)
	assert.Len(t, posts, 2)

	// ack first, summary edit after the fan-out
	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "Broadcasting")
	stub.mu.Lock()
	edits := append([]*discordgo.WebhookEdit{}, stub.responseEdits...)
	stub.mu.Unlock()
	require.Len(t, edits, 1)
	require.NotNil(t, edits[0].Content)
	assert.Contains(t, *edits[0].Content, "2 server(s)")

	posted, err := counterValue(m.writeDB, counterAdsPosted)
	require.NoError(t, err)
	assert.Equal(t, int64(1), posted)

	coolingDown, _, err := checkPostCooldown(m.writeDB, "poster", time.Now())
	require.NoError(t, err)
	assert.True(t, coolingDown)
}

func TestLFGPostCooldownBlocksSecondPost(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ctx := context.Background()

	m.handleLFGCommand(ctx, lfgPostInteraction("poster", "g1", "Game A", "x"))
	m.handleLFGCommand(ctx, lfgPostInteraction("poster", "g1", "Game B", "x"))

	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "next ad")

	var count int64
	require.NoError(
		t,
		m.db.Model(&Ad{}).Where("owner_id = ?", "poster").Count(&count).Error,
	)
	assert.Equal(t, int64(1), count)
}

func TestLFGPostWhitelistBypassesLimits(t *testing.T) {
	t.Parallel()
	m, _ := newTestMatchmaker(t)
	ctx := context.Background()

	added, err := addToWhitelist(m.writeDB, "poster", "owner")
	require.NoError(t, err)
	require.True(t, added)

	for n := 0; n < 5; n++ {
		m.handleLFGCommand(
			ctx,
			lfgPostInteraction("poster", "g1", fmt.Sprintf("Game %d", n), "x"),
		)
	}

	var count int64
	require.NoError(
		t,
		m.db.Model(&Ad{}).Where("owner_id = ?", "poster").Count(&count).Error,
	)
	assert.Equal(t, int64(5), count)
}

func TestLFGPostActiveAdLimit(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ctx := context.Background()

	owner := &User{ID: "poster", Username: "poster"}
	_, err := m.writeDB.Create(owner)
	require.NoError(t, err)
	limit := m.RuntimeConfig().AdsPerUserLimit
	for n := 0; n < limit; n++ {
		ad := NewAd(owner, "g1", "c1", fmt.Sprintf("Game %d", n), "", time.Hour, false)
		_, err = m.writeDB.Create(ad)
		require.NoError(t, err)
	}

	m.handleLFGCommand(ctx, lfgPostInteraction("poster", "g1", "One More", "x"))

	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "active ad(s)")

	var count int64
	require.NoError(
		t,
		m.db.Model(&Ad{}).Where("owner_id = ?", "poster").Count(&count).Error,
	)
	assert.Equal(t, int64(limit), count)
}

func TestLFGPostBlockedForEnforcedUser(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ctx := context.Background()

	_, err := applyEnforcement(
		m.writeDB,
		"poster",
		"g1",
		EnforcementTimeout,
		time.Hour,
		"spam",
		"mod1",
	)
	require.NoError(t, err)

	m.handleLFGCommand(ctx, lfgPostInteraction("poster", "g1", "Game", "x"))

	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "timed out")

	var count int64
	require.NoError(t, m.db.Model(&Ad{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLFGPostRejectedOutsideGuild(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)

	i := lfgPostInteraction("poster", "", "Game", "x")
	i.Member = nil
	i.User = &discordgo.User{ID: "poster", Username: "poster"}
	m.handleLFGCommand(context.Background(), i)

	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "server")
}

func TestLFGPostCustomTTL(t *testing.T) {
	t.Parallel()
	m, _ := newTestMatchmaker(t)
	ctx := context.Background()

	i := lfgPostInteraction(
		"poster",
		"g1",
		"Short Session",
		"x",
		&discordgo.ApplicationCommandInteractionDataOption{
			Type:  discordgo.ApplicationCommandOptionInteger,
			Name:  "hours",
			Value: float64(2),
		},
		&discordgo.ApplicationCommandInteractionDataOption{
			Type:  discordgo.ApplicationCommandOptionBoolean,
			Name:  "notify",
			Value: true,
		},
	)
	m.handleLFGCommand(ctx, i)

	var ad Ad
	require.NoError(t, m.db.Last(&ad).Error)
	assert.True(t, ad.NotifyOnExpire)
	assert.WithinDuration(
		t,
		time.Now().Add(2*time.Hour),
		time.UnixMilli(ad.ExpiresAt),
		time.Minute,
	)
}
