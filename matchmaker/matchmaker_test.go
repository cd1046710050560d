package matchmaker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

func DefaultTestConfig(t testing.TB) *Config {
	tmpdir := t.TempDir()
	cfg := DefaultConfig()

	cfg.DatabaseType = dbTypeSQLite
	cfg.Database = filepath.Join(tmpdir, fmt.Sprintf("%s.sqlite3", t.Name()))
	cfg.StartupTimeout = 5 * time.Second
	cfg.ShutdownTimeout = 10 * time.Second
	cfg.RuntimeConfigTTL = 0
	cfg.UserCacheTTL = 0
	cfg.Development = true

	cfg.Discord.Token = "test-token"
	cfg.Discord.ApplicationID = "test-application-id"
	cfg.Discord.ReportsGuildID = "test-reports-guild"
	cfg.OwnerUserID = "test-owner"

	logLevel := slog.LevelWarn
	cfg.LogLevel.Set(logLevel)
	cfg.Discord.LogLevel.Set(logLevel)
	cfg.Discord.DiscordGoLogLevel.Set(logLevel)
	cfg.DatabaseLogLevel.Set(logLevel)
	cfg.API.LogLevel.Set(logLevel)

	return cfg
}

func testDB(t testing.TB) DBI {
	t.Helper()
	cfg := DefaultTestConfig(t)
	db, err := CreateDB(context.Background(), cfg.DatabaseType, cfg.Database)
	require.NoError(t, err)
	t.Cleanup(
		func() {
			sqlDB, _ := db.DB().DB()
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		},
	)
	return db
}

// newTestMatchmaker assembles a Matchmaker against a temp sqlite database
// and a stub gateway session, without running the gateway loop.
func newTestMatchmaker(t testing.TB) (*Matchmaker, *stubSessionHandler) {
	t.Helper()
	cfg := DefaultTestConfig(t)

	m, err := New(cfg)
	require.NoError(t, err)

	writeDB, err := CreateDB(
		context.Background(),
		cfg.DatabaseType,
		cfg.Database,
	)
	require.NoError(t, err)
	t.Cleanup(
		func() {
			sqlDB, _ := writeDB.DB().DB()
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		},
	)
	m.writeDB = writeDB
	m.db = writeDB.DB()

	rc := DefaultRuntimeConfig()
	_, err = writeDB.Create(&rc)
	require.NoError(t, err)
	m.runtimeConfig = &rc

	notifier, err := newSQLiteNotifier(m)
	require.NoError(t, err)
	m.dbNotifier = notifier

	m.startedAt = time.Now()

	stub := newStubSessionHandler()
	m.discord.session = stub
	return m, stub
}

// stubSessionHandler records every Discord call so tests can assert on
// what the bot tried to send without a gateway connection.
type stubSessionHandler struct {
	mu sync.Mutex

	interactionResponses []*discordgo.InteractionResponse
	responseEdits        []*discordgo.WebhookEdit
	channelMessages      map[string][]string
	complexSends         map[string][]*discordgo.MessageSend
	messageEdits         []*discordgo.MessageEdit
	guildChannelCreates  []discordgo.GuildChannelCreateData
	channelDeletes       []string
	guildLeaves          []string
	statusUpdates        []discordgo.UpdateStatusData

	// sendComplexFunc, when set, overrides ChannelMessageSendComplex.
	sendComplexFunc func(
		channelID string,
		data *discordgo.MessageSend,
	) (*discordgo.Message, error)

	// userChannelCreateFunc, when set, overrides UserChannelCreate.
	userChannelCreateFunc func(recipientID string) (*discordgo.Channel, error)

	messageCounter atomic.Int64
}

func newStubSessionHandler() *stubSessionHandler {
	return &stubSessionHandler{
		channelMessages: map[string][]string{},
		complexSends:    map[string][]*discordgo.MessageSend{},
	}
}

func (s *stubSessionHandler) Open() error  { return nil }
func (s *stubSessionHandler) Close() error { return nil }

func (s *stubSessionHandler) AddHandler(_ any) func() {
	return func() {}
}

func (s *stubSessionHandler) ApplicationCommandBulkOverwrite(
	_ string,
	_ string,
	commands []*discordgo.ApplicationCommand,
	_ ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return commands, nil
}

func (s *stubSessionHandler) InteractionRespond(
	_ *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	_ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactionResponses = append(s.interactionResponses, resp)
	return nil
}

func (s *stubSessionHandler) InteractionResponseEdit(
	_ *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responseEdits = append(s.responseEdits, newresp)
	return &discordgo.Message{}, nil
}

func (s *stubSessionHandler) ChannelMessageSend(
	channelID string,
	content string,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelMessages[channelID] = append(s.channelMessages[channelID], content)
	return &discordgo.Message{
		ID:        fmt.Sprintf("msg-%d", s.messageCounter.Add(1)),
		ChannelID: channelID,
	}, nil
}

func (s *stubSessionHandler) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	if s.sendComplexFunc != nil {
		return s.sendComplexFunc(channelID, data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complexSends[channelID] = append(s.complexSends[channelID], data)
	return &discordgo.Message{
		ID:        fmt.Sprintf("msg-%d", s.messageCounter.Add(1)),
		ChannelID: channelID,
	}, nil
}

func (s *stubSessionHandler) ChannelMessageEditComplex(
	m *discordgo.MessageEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageEdits = append(s.messageEdits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (s *stubSessionHandler) UserChannelCreate(
	recipientID string,
	_ ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	if s.userChannelCreateFunc != nil {
		return s.userChannelCreateFunc(recipientID)
	}
	return &discordgo.Channel{ID: fmt.Sprintf("dm-%s", recipientID)}, nil
}

func (s *stubSessionHandler) GuildChannelCreateComplex(
	_ string,
	data discordgo.GuildChannelCreateData,
	_ ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guildChannelCreates = append(s.guildChannelCreates, data)
	return &discordgo.Channel{
		ID:   fmt.Sprintf("chan-%d", s.messageCounter.Add(1)),
		Name: data.Name,
	}, nil
}

func (s *stubSessionHandler) ChannelDelete(
	channelID string,
	_ ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelDeletes = append(s.channelDeletes, channelID)
	return &discordgo.Channel{ID: channelID}, nil
}

func (s *stubSessionHandler) GuildLeave(
	guildID string,
	_ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guildLeaves = append(s.guildLeaves, guildID)
	return nil
}

func (s *stubSessionHandler) UpdateStatusComplex(
	usd discordgo.UpdateStatusData,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpdates = append(s.statusUpdates, usd)
	return nil
}

func (s *stubSessionHandler) HeartbeatLatency() time.Duration {
	return 40 * time.Millisecond
}

func (s *stubSessionHandler) SetIdentify(_ discordgo.Identify) {}
func (s *stubSessionHandler) SetLogLevel(_ int)                {}

// responseContents returns the content of every interaction response
// sent so far.
func (s *stubSessionHandler) responseContents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	contents := make([]string, 0, len(s.interactionResponses))
	for _, resp := range s.interactionResponses {
		if resp.Data != nil {
			contents = append(contents, resp.Data.Content)
		}
	}
	return contents
}

func (s *stubSessionHandler) lastResponse() *discordgo.InteractionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.interactionResponses) == 0 {
		return nil
	}
	return s.interactionResponses[len(s.interactionResponses)-1]
}

func (s *stubSessionHandler) channelContents(channelID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.channelMessages[channelID]...)
}

// componentInteraction builds a guild component interaction for tests.
func componentInteraction(
	userID string,
	guildID string,
	customID string,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        fmt.Sprintf("interaction-%s-%s", userID, customID),
			Type:      discordgo.InteractionMessageComponent,
			GuildID:   guildID,
			ChannelID: "test-channel",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: userID, Username: "user-" + userID},
			},
			Data: discordgo.MessageComponentInteractionData{
				CustomID: customID,
			},
		},
	}
}

// modalInteraction builds a guild modal submission for tests.
func modalInteraction(
	userID string,
	guildID string,
	customID string,
	inputs map[string]string,
) *discordgo.InteractionCreate {
	var rows []discordgo.MessageComponent
	for inputID, value := range inputs {
		rows = append(
			rows,
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: inputID, Value: value},
				},
			},
		)
	}
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      fmt.Sprintf("interaction-%s-%s", userID, customID),
			Type:    discordgo.InteractionModalSubmit,
			GuildID: guildID,
			Member: &discordgo.Member{
				User: &discordgo.User{ID: userID, Username: "user-" + userID},
			},
			Data: discordgo.ModalSubmitInteractionData{
				CustomID:   customID,
				Components: rows,
			},
		},
	}
}

func TestPauseResume(t *testing.T) {
	t.Parallel()
	m, _ := newTestMatchmaker(t)
	ctx := context.Background()

	require.False(t, m.Paused())
	require.NoError(t, m.Pause(ctx))
	require.True(t, m.Paused())

	// the persisted row reflects the change
	var cfg RuntimeConfig
	require.NoError(t, m.writeDB.Last(&cfg))
	require.True(t, cfg.Paused)

	require.NoError(t, m.Resume(ctx))
	require.False(t, m.Paused())
}

func TestUpdateRuntimeConfigRejectsInvalid(t *testing.T) {
	t.Parallel()
	m, _ := newTestMatchmaker(t)

	concurrency := 500
	_, err := m.UpdateRuntimeConfig(
		context.Background(),
		RuntimeConfigUpdate{BroadcastConcurrency: &concurrency},
	)
	require.Error(t, err)
	require.Equal(
		t,
		DefaultBroadcastConcurrency,
		m.RuntimeConfig().BroadcastConcurrency,
	)
}

func TestStopSignals(t *testing.T) {
	t.Parallel()
	m, _ := newTestMatchmaker(t)

	require.NoError(t, m.Stop(context.Background()))
	select {
	case <-m.signalStop:
	default:
		t.Fatal("expected stop signal")
	}
}

func TestGuildDeleteRemovesRoster(t *testing.T) {
	t.Parallel()
	m, _ := newTestMatchmaker(t)

	_, err := m.writeDB.Save(&BotGuild{GuildID: "g1", Name: "Guild One"})
	require.NoError(t, err)

	m.handleGuildDelete(
		nil,
		&discordgo.GuildDelete{
			Guild: &discordgo.Guild{ID: "g1"},
		},
	)

	var count int64
	require.NoError(
		t,
		m.db.Model(&BotGuild{}).Where("guild_id = ?", "g1").Count(&count).Error,
	)
	require.Zero(t, count)

	leaves, err := counterValue(m.writeDB, counterGuildLeaves)
	require.NoError(t, err)
	require.Equal(t, int64(1), leaves)
}

func TestSyncGuildLeavesUnlistedStagingGuild(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	m.config.Environment = EnvironmentStaging
	ctx := context.Background()

	require.NoError(t, allowGuild(m.writeDB, "allowed", EnvironmentStaging, "t"))

	m.syncGuild(ctx, "allowed", "Allowed Guild")
	m.syncGuild(ctx, "unlisted", "Unlisted Guild")

	stub.mu.Lock()
	leaves := append([]string{}, stub.guildLeaves...)
	stub.mu.Unlock()
	require.Equal(t, []string{"unlisted"}, leaves)
}
