package matchmaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementCounter(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	value, err := counterValue(db, counterAdsPosted)
	require.NoError(t, err)
	assert.Zero(t, value)

	require.NoError(t, incrementCounter(db, counterAdsPosted, 1))
	require.NoError(t, incrementCounter(db, counterAdsPosted, 1))
	require.NoError(t, incrementCounter(db, counterConnects, 5))

	value, err = counterValue(db, counterAdsPosted)
	require.NoError(t, err)
	assert.Equal(t, int64(2), value)

	value, err = counterValue(db, counterConnects)
	require.NoError(t, err)
	assert.Equal(t, int64(5), value)
}

func TestGuildSettings(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	// missing guild yields an empty row
	settings, err := getGuildSettings(db, "g1")
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "g1", settings.GuildID)
	assert.Empty(t, settings.LFGChannelID)

	require.NoError(t, setLFGChannel(db, "g1", "chan1", "mod1"))
	settings, err = getGuildSettings(db, "g1")
	require.NoError(t, err)
	assert.Equal(t, "chan1", settings.LFGChannelID)
	assert.Equal(t, "mod1", settings.UpdatedBy)

	// clearing removes the guild from broadcast targets
	require.NoError(t, setLFGChannel(db, "g1", "", "mod2"))
	targets, err := broadcastTargets(db)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestBroadcastTargetsSkipUnconfigured(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	require.NoError(t, setLFGChannel(db, "g1", "chan1", "mod"))
	require.NoError(t, setLFGChannel(db, "g2", "chan2", "mod"))
	_, err := db.Save(&GuildSettings{GuildID: "g3"})
	require.NoError(t, err)

	targets, err := broadcastTargets(db)
	require.NoError(t, err)
	assert.Len(t, targets, 2)
	for _, target := range targets {
		assert.NotEmpty(t, target.LFGChannelID)
	}
}

func TestGuildAllowed(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	// production ignores the allowlist
	allowed, err := guildAllowed(db, "anything", EnvironmentProduction)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = guildAllowed(db, "g1", EnvironmentStaging)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, allowGuild(db, "g1", EnvironmentStaging, "owner"))
	allowed, err = guildAllowed(db, "g1", EnvironmentStaging)
	require.NoError(t, err)
	assert.True(t, allowed)

	// allowing twice doesn't duplicate
	require.NoError(t, allowGuild(db, "g1", EnvironmentStaging, "owner"))
	var count int64
	require.NoError(
		t,
		db.DB().Model(&AllowedGuild{}).Where("guild_id = ?", "g1").
			Count(&count).Error,
	)
	assert.Equal(t, int64(1), count)

	removed, err := disallowGuild(db, "g1", EnvironmentStaging)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = disallowGuild(db, "g1", EnvironmentStaging)
	require.NoError(t, err)
	assert.False(t, removed)

	allowed, err = guildAllowed(db, "g1", EnvironmentStaging)
	require.NoError(t, err)
	assert.False(t, allowed)
}
