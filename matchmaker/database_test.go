package matchmaker

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateUser(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	discordUser := discordgo.User{
		ID:         "u1",
		Username:   "original",
		GlobalName: "Original",
	}

	user, isNew, err := db.GetOrCreateUser(ctx, discordUser)
	require.NoError(t, err)
	assert.True(t, isNew)
	require.NotNil(t, user)
	assert.Equal(t, "original", user.Username)
	assert.NotZero(t, user.LastSeen)

	// second sight hits the cache and is not new
	user, isNew, err = db.GetOrCreateUser(ctx, discordUser)
	require.NoError(t, err)
	assert.False(t, isNew)

	cached, found := db.GetUser("u1")
	require.True(t, found)
	assert.Equal(t, "original", cached.Username)
}

func TestGetOrCreateUserRefreshesDriftedNames(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	_, _, err := db.GetOrCreateUser(
		ctx,
		discordgo.User{ID: "u1", Username: "before", GlobalName: "Before"},
	)
	require.NoError(t, err)

	user, isNew, err := db.GetOrCreateUser(
		ctx,
		discordgo.User{ID: "u1", Username: "after", GlobalName: "After"},
	)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "after", user.Username)
	assert.Equal(t, "After", user.GlobalName)

	// persisted, not just cached
	var stored User
	require.NoError(t, db.DB().Where("id = ?", "u1").First(&stored).Error)
	assert.Equal(t, "after", stored.Username)
	assert.Equal(t, "After", stored.GlobalName)
}

func TestForgetAndReloadUser(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()

	_, _, err := db.GetOrCreateUser(ctx, discordgo.User{ID: "u1", Username: "u"})
	require.NoError(t, err)

	db.ForgetUser("u1")
	_, found := db.GetUser("u1")
	assert.False(t, found)

	reloaded, err := db.ReloadUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", reloaded.ID)

	_, found = db.GetUser("u1")
	assert.True(t, found)
}

func TestLoadUsers(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := db.Create(&User{ID: id, Username: "user-" + id})
		require.NoError(t, err)
	}

	users, err := db.LoadUsers()
	require.NoError(t, err)
	assert.Len(t, users, 3)

	for _, id := range []string{"a", "b", "c"} {
		_, found := db.GetUser(id)
		assert.True(t, found, "user %s", id)
	}
}

func TestUserCacheTTL(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	db.SetUserCacheTTL(5 * time.Minute)
	assert.Equal(t, 5*time.Minute, db.UserCacheTTL())
}

func TestUserDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		"Global",
		User{Username: "plain", GlobalName: "Global"}.DisplayName(),
	)
	assert.Equal(t, "plain", User{Username: "plain"}.DisplayName())
}

func TestCreateDBRejectsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := CreateDB(context.Background(), "mysql", "dsn")
	require.Error(t, err)
}

func TestSQLiteNotifierSignals(t *testing.T) {
	t.Parallel()
	m, _ := newTestMatchmaker(t)
	ctx := context.Background()

	notifier, err := newSQLiteNotifier(m)
	require.NoError(t, err)
	assert.NotEmpty(t, notifier.ID())

	require.NoError(t, notifier.NotifyRuntimeConfigChange(ctx))
	select {
	case <-m.triggerRuntimeConfigRefreshCh:
	case <-time.After(time.Second):
		t.Fatal("refresh signal never arrived")
	}

	require.NoError(t, notifier.NotifyStop(ctx))
	select {
	case <-m.signalStop:
	case <-time.After(time.Second):
		t.Fatal("stop signal never arrived")
	}
}
