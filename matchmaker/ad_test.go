package matchmaker

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdLifecycle(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	owner := &User{ID: "owner1", Username: "owner"}
	ad := NewAd(owner, "guild1", "chan1", "Deep Rock Galactic", "EU, mic", time.Hour, true)
	_, err := db.Create(ad)
	require.NoError(t, err)
	require.NotZero(t, ad.ID)

	loaded, err := getAd(db, ad.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Deep Rock Galactic", loaded.Game)
	assert.True(t, loaded.active(time.Now()))
	assert.False(t, loaded.active(time.Now().Add(2*time.Hour)))

	missing, err := getAd(db, ad.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecordAdClickOncePerUser(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	owner := &User{ID: "owner1", Username: "owner"}
	ad := NewAd(owner, "guild1", "chan1", "Valheim", "", time.Hour, false)
	_, err := db.Create(ad)
	require.NoError(t, err)

	created, err := recordAdClick(db, ad.ID, "clicker1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = recordAdClick(db, ad.ID, "clicker1")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = recordAdClick(db, ad.ID, "clicker2")
	require.NoError(t, err)
	assert.True(t, created)

	loaded, err := getAd(db, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.ClickCount)
}

func TestActiveAdCount(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	owner := &User{ID: "owner1", Username: "owner"}
	now := time.Now()

	ads := []*Ad{
		NewAd(owner, "g", "c", "Game A", "", time.Hour, false),
		NewAd(owner, "g", "c", "Game B", "", time.Hour, false),
		NewAd(owner, "g", "c", "Game C", "", time.Hour, false),
	}
	ads[1].Status = AdStatusRemoved
	ads[2].ExpiresAt = now.Add(-time.Minute).UnixMilli()
	for _, ad := range ads {
		_, err := db.Create(ad)
		require.NoError(t, err)
	}

	count, err := activeAdCount(db, owner.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestParseUintID(t *testing.T) {
	t.Parallel()

	id, err := parseUintID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	_, err = parseUintID("nope")
	require.Error(t, err)

	_, err = parseUintID("-1")
	require.Error(t, err)
}

func TestExpireDueAds(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ctx := context.Background()

	owner := &User{ID: "owner1", Username: "owner"}
	_, err := m.writeDB.Create(owner)
	require.NoError(t, err)

	due := NewAd(owner, "g1", "c1", "Expired Game", "", time.Hour, true)
	due.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
	_, err = m.writeDB.Create(due)
	require.NoError(t, err)

	fresh := NewAd(owner, "g1", "c1", "Fresh Game", "", time.Hour, false)
	_, err = m.writeDB.Create(fresh)
	require.NoError(t, err)

	_, err = m.writeDB.Create(
		&AdPost{
			AdID:      due.ID,
			GuildID:   "g2",
			ChannelID: "target-chan",
			MessageID: "target-msg",
		},
	)
	require.NoError(t, err)

	handled, err := m.expireDueAds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)

	expired, err := getAd(m.writeDB, due.ID)
	require.NoError(t, err)
	assert.Equal(t, AdStatusExpired, expired.Status)
	assert.True(t, expired.ExpiredHandled)

	stillFresh, err := getAd(m.writeDB, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, AdStatusActive, stillFresh.Status)

	// broadcast copy had its buttons disabled
	stub.mu.Lock()
	edits := append([]*discordgo.MessageEdit{}, stub.messageEdits...)
	stub.mu.Unlock()
	require.Len(t, edits, 1)
	assert.Equal(t, "target-chan", edits[0].Channel)
	assert.Equal(t, "target-msg", edits[0].ID)

	// owner asked to be notified
	dms := stub.channelContents("dm-owner1")
	require.Len(t, dms, 1)
	assert.Contains(t, dms[0], "Expired Game")

	// sweep is idempotent
	handled, err = m.expireDueAds(ctx)
	require.NoError(t, err)
	assert.Zero(t, handled)
}
