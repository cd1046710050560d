package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBroadcastTargets(t testing.TB, db DBI, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := db.Save(
			&GuildSettings{
				GuildID:      fmt.Sprintf("guild-%d", i),
				LFGChannelID: fmt.Sprintf("lfg-chan-%d", i),
			},
		)
		require.NoError(t, err)
	}
}

func TestBroadcastAdFansOutToAllTargets(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	seedBroadcastTargets(t, m.writeDB, 5)

	// a guild with no LFG channel is not a target
	_, err := m.writeDB.Save(&GuildSettings{GuildID: "unconfigured"})
	require.NoError(t, err)

	owner := &User{ID: "owner1", Username: "owner"}
	ad := NewAd(owner, "origin", "chan", "Helldivers 2", "", time.Hour, false)
	_, err = m.writeDB.Create(ad)
	require.NoError(t, err)

	result, err := m.broadcastAd(context.Background(), ad)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Targets)
	assert.Equal(t, 5, result.Sent)
	assert.Zero(t, result.Failed)

	var posts []AdPost
	require.NoError(t, m.db.Where("ad_id = ?", ad.ID).Find(&posts).Error)
	assert.Len(t, posts, 5)
	for _, post := range posts {
		assert.NotEmpty(t, post.MessageID)
	}

	stub.mu.Lock()
	sends := len(stub.complexSends)
	stub.mu.Unlock()
	assert.Equal(t, 5, sends)
}

func TestBroadcastAdToleratesSendFailures(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	seedBroadcastTargets(t, m.writeDB, 4)

	var sendCount atomic.Int64
	stub.sendComplexFunc = func(
		channelID string,
		_ *discordgo.MessageSend,
	) (*discordgo.Message, error) {
		if channelID == "lfg-chan-2" {
			return nil, errors.New("missing access")
		}
		return &discordgo.Message{
			ID:        fmt.Sprintf("msg-%d", sendCount.Add(1)),
			ChannelID: channelID,
		}, nil
	}

	owner := &User{ID: "owner1", Username: "owner"}
	ad := NewAd(owner, "origin", "chan", "Lethal Company", "", time.Hour, false)
	_, err := m.writeDB.Create(ad)
	require.NoError(t, err)

	result, err := m.broadcastAd(context.Background(), ad)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Targets)
	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 1, result.Failed)

	var posts []AdPost
	require.NoError(t, m.db.Where("ad_id = ?", ad.ID).Find(&posts).Error)
	assert.Len(t, posts, 3)
	for _, post := range posts {
		assert.NotEqual(t, "lfg-chan-2", post.ChannelID)
	}
}

func TestBroadcastAdBoundsConcurrency(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	seedBroadcastTargets(t, m.writeDB, 20)

	concurrency := 3
	rate := 1000
	_, err := m.UpdateRuntimeConfig(
		context.Background(),
		RuntimeConfigUpdate{
			BroadcastConcurrency:   &concurrency,
			BroadcastRatePerSecond: &rate,
		},
	)
	require.NoError(t, err)

	var inFlight, maxInFlight atomic.Int64
	stub.sendComplexFunc = func(
		channelID string,
		_ *discordgo.MessageSend,
	) (*discordgo.Message, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			observed := maxInFlight.Load()
			if current <= observed ||
				maxInFlight.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return &discordgo.Message{ID: "m", ChannelID: channelID}, nil
	}

	owner := &User{ID: "owner1", Username: "owner"}
	ad := NewAd(owner, "origin", "chan", "Factorio", "", time.Hour, false)
	_, err = m.writeDB.Create(ad)
	require.NoError(t, err)

	result, err := m.broadcastAd(context.Background(), ad)
	require.NoError(t, err)
	assert.Equal(t, 20, result.Sent)
	assert.LessOrEqual(t, maxInFlight.Load(), int64(concurrency))
}

func TestBroadcastAdNoTargets(t *testing.T) {
	t.Parallel()
	m, _ := newTestMatchmaker(t)

	owner := &User{ID: "owner1", Username: "owner"}
	ad := NewAd(owner, "origin", "chan", "Stardew Valley", "", time.Hour, false)
	_, err := m.writeDB.Create(ad)
	require.NoError(t, err)

	result, err := m.broadcastAd(context.Background(), ad)
	require.NoError(t, err)
	assert.Zero(t, result.Targets)
	assert.Zero(t, result.Sent)
}
