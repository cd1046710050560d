package matchmaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedActiveAd(t testing.TB, m *Matchmaker) *Ad {
	t.Helper()
	owner := &User{ID: "ad-owner", Username: "owner"}
	_, err := m.writeDB.Create(owner)
	require.NoError(t, err)
	ad := NewAd(owner, "g1", "c1", "Overwatch 2", "", time.Hour, false)
	_, err = m.writeDB.Create(ad)
	require.NoError(t, err)
	return ad
}

func TestHandleConnectButton(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ctx := context.Background()
	ad := seedActiveAd(t, m)

	i := componentInteraction(
		"clicker",
		"g1",
		fmt.Sprintf("%s:%d", customIDConnectPrefix, ad.ID),
	)
	m.handleConnectButton(ctx, i, ad.ID)

	// both parties got their introductions
	ownerDMs := stub.channelContents("dm-ad-owner")
	require.Len(t, ownerDMs, 1)
	assert.Contains(t, ownerDMs[0], "Overwatch 2")
	assert.Contains(t, ownerDMs[0], userMention("clicker"))

	clickerDMs := stub.channelContents("dm-clicker")
	require.Len(t, clickerDMs, 1)
	assert.Contains(t, clickerDMs[0], userMention("ad-owner"))

	loaded, err := getAd(m.writeDB, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.ClickCount)

	connects, err := counterValue(m.writeDB, counterConnects)
	require.NoError(t, err)
	assert.Equal(t, int64(1), connects)
}

func TestHandleConnectButtonSelfClick(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ad := seedActiveAd(t, m)

	i := componentInteraction(
		"ad-owner",
		"g1",
		fmt.Sprintf("%s:%d", customIDConnectPrefix, ad.ID),
	)
	m.handleConnectButton(context.Background(), i, ad.ID)

	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "your own ad")
	assert.Empty(t, stub.channelContents("dm-ad-owner"))
}

func TestHandleConnectButtonDuplicateClick(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ctx := context.Background()
	ad := seedActiveAd(t, m)

	i := componentInteraction(
		"clicker",
		"g1",
		fmt.Sprintf("%s:%d", customIDConnectPrefix, ad.ID),
	)
	m.handleConnectButton(ctx, i, ad.ID)
	m.handleConnectButton(ctx, i, ad.ID)

	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "already connected")

	// no second round of DMs
	assert.Len(t, stub.channelContents("dm-ad-owner"), 1)
	assert.Len(t, stub.channelContents("dm-clicker"), 1)

	loaded, err := getAd(m.writeDB, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.ClickCount)
}

func TestHandleConnectButtonInactiveAd(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ad := seedActiveAd(t, m)
	_, err := m.writeDB.Update(ad, "status", AdStatusExpired)
	require.NoError(t, err)

	i := componentInteraction(
		"clicker",
		"g1",
		fmt.Sprintf("%s:%d", customIDConnectPrefix, ad.ID),
	)
	m.handleConnectButton(context.Background(), i, ad.ID)

	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "no longer active")
}

func TestHandleConnectButtonEnforcedUser(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ad := seedActiveAd(t, m)

	_, err := applyEnforcement(
		m.writeDB,
		"clicker",
		"g1",
		EnforcementTimeout,
		time.Hour,
		"spam",
		"mod1",
	)
	require.NoError(t, err)

	i := componentInteraction(
		"clicker",
		"g1",
		fmt.Sprintf("%s:%d", customIDConnectPrefix, ad.ID),
	)
	m.handleConnectButton(context.Background(), i, ad.ID)

	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "timed out")
	assert.Empty(t, stub.channelContents("dm-ad-owner"))
}

func TestHandleConnectButtonChannelRateLimit(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ctx := context.Background()
	ad := seedActiveAd(t, m)

	for n := 0; n < channelLimiterEvents; n++ {
		i := componentInteraction(
			fmt.Sprintf("clicker-%d", n),
			"g1",
			fmt.Sprintf("%s:%d", customIDConnectPrefix, ad.ID),
		)
		m.handleConnectButton(ctx, i, ad.ID)
	}

	i := componentInteraction(
		"one-too-many",
		"g1",
		fmt.Sprintf("%s:%d", customIDConnectPrefix, ad.ID),
	)
	m.handleConnectButton(ctx, i, ad.ID)

	require.NotNil(t, stub.lastResponse())
	assert.Equal(
		t,
		m.RuntimeConfig().DiscordRateLimitMessage,
		stub.lastResponse().Data.Content,
	)
	assert.Empty(t, stub.channelContents("dm-one-too-many"))
}
