package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

// sweepInterval is how often the ad expiry sweeper runs.
const sweepInterval = time.Minute

// channelLimiterEvents / channelLimiterWindow bound component presses
// per (guild, channel).
const (
	channelLimiterEvents = 10
	channelLimiterWindow = time.Minute
)

// Matchmaker is the bot: gateway session, persistence, HTTP API, and
// background sweepers.
type Matchmaker struct {
	config  *Config
	discord *Discord
	api     *API

	db      *gorm.DB
	writeDB DBI

	dbNotifier DBNotifier

	logger     *slog.Logger
	logHandler slog.Handler

	runtimeConfig *RuntimeConfig
	cfgMu         sync.RWMutex

	channelLimiter *slidingWindowLimiter

	startedAt time.Time

	// runMu prevents concurrent Run calls
	runMu sync.Mutex

	// wg tracks async audit-log writes so shutdown can flush them
	wg sync.WaitGroup

	signalStop                    chan struct{}
	signalReady                   chan struct{}
	eventShutdown                 chan struct{}
	triggerRuntimeConfigRefreshCh chan struct{}
}

// New assembles a Matchmaker from static config. Nothing external is
// touched until Run.
func New(config *Config) (*Matchmaker, error) {
	var errs []error

	if config == nil {
		return nil, errors.New("nil config")
	}
	if err := config.Validate(); err != nil {
		errs = append(errs, err)
	}

	logHandler := tint.NewHandler(
		os.Stdout,
		&tint.Options{Level: config.LogLevel, AddSource: true},
	)
	logger := slog.New(logHandler).With(loggerNameKey, "matchmaker")

	m := &Matchmaker{
		config:                        config,
		logger:                        logger,
		logHandler:                    logHandler,
		channelLimiter:                newSlidingWindowLimiter(channelLimiterEvents, channelLimiterWindow),
		signalStop:                    make(chan struct{}, 1),
		signalReady:                   make(chan struct{}, 1),
		eventShutdown:                 make(chan struct{}),
		triggerRuntimeConfigRefreshCh: make(chan struct{}, 1),
	}

	discord, err := newDiscord(config, logHandler)
	if err != nil {
		errs = append(errs, err)
	} else {
		discord.mm = m
		m.discord = discord
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// Run starts the bot and blocks until ctx is cancelled or a stop signal
// arrives.
func (m *Matchmaker) Run(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.startedAt = time.Now()
	ctx = WithLogger(ctx, m.logger)
	m.logger.LogAttrs(
		ctx,
		slog.LevelInfo,
		"starting",
		slog.String("version", Version),
		slog.Any("config", m.config),
	)

	if err := m.initDB(ctx); err != nil {
		return err
	}
	if err := m.initNotifier(ctx); err != nil {
		return err
	}
	go func() {
		if err := m.dbNotifier.Listen(ctx); err != nil &&
			!errors.Is(err, context.Canceled) {
			m.logger.Error("notifier listener stopped", tint.Err(err))
		}
	}()

	if err := m.initRuntimeConfig(ctx); err != nil {
		return err
	}

	m.writeDB.SetUserCacheTTL(m.config.UserCacheTTL)
	if _, err := m.writeDB.LoadUsers(); err != nil {
		return fmt.Errorf("error loading users: %w", err)
	}

	if err := m.initDiscordSession(ctx); err != nil {
		return err
	}
	defer func() {
		if err := m.discord.session.Close(); err != nil {
			m.logger.Error("error closing discord session", tint.Err(err))
		}
	}()

	if err := m.discord.registerCommands(ctx, m.RuntimeConfig()); err != nil {
		return err
	}

	if m.config.API.Listen != "" {
		m.api = newAPI(m, &m.config.API)
		go func() {
			if err := m.api.Serve(ctx); err != nil {
				m.logger.Error("api server stopped", tint.Err(err))
			}
		}()
	}

	go m.startRuntimeConfigRefresher(ctx)
	go m.startUserCacheRefresher(ctx)
	go m.startAdExpirySweeper(ctx)

	m.logger.InfoContext(ctx, "matchmaker running")

	select {
	case <-ctx.Done():
		m.logger.InfoContext(ctx, "context cancelled, shutting down")
	case <-m.signalStop:
		m.logger.InfoContext(ctx, "stop signal received, shutting down")
	}
	return m.shutdown()
}

func (m *Matchmaker) initDB(ctx context.Context) error {
	writeDB, err := CreateDB(ctx, m.config.DatabaseType, m.config.Database)
	if err != nil {
		return err
	}
	m.writeDB = writeDB
	m.db = writeDB.DB()
	return nil
}

func (m *Matchmaker) initNotifier(ctx context.Context) error {
	var err error
	switch m.config.DatabaseType {
	case dbTypePostgres:
		m.dbNotifier, err = newPostgresNotifier(ctx, m, m.config.Database)
	default:
		m.dbNotifier, err = newSQLiteNotifier(m)
	}
	if err != nil {
		return fmt.Errorf("error creating notifier: %w", err)
	}
	return nil
}

// initRuntimeConfig loads the runtime config row, seeding the default on
// first run.
func (m *Matchmaker) initRuntimeConfig(_ context.Context) error {
	var cfg RuntimeConfig
	err := m.writeDB.Last(&cfg)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = DefaultRuntimeConfig()
		if _, err = m.writeDB.Create(&cfg); err != nil {
			return fmt.Errorf("error seeding runtime config: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("error loading runtime config: %w", err)
	}

	m.cfgMu.Lock()
	m.runtimeConfig = &cfg
	m.cfgMu.Unlock()

	m.setRuntimeLevels(cfg)
	return nil
}

// initDiscordSession registers gateway handlers and opens the session,
// waiting for READY within the startup timeout.
func (m *Matchmaker) initDiscordSession(ctx context.Context) error {
	session := m.discord.session
	session.AddHandler(m.discord.handlerConnect)
	session.AddHandler(m.discord.handlerDisconnect)
	session.AddHandler(m.handleReady)
	session.AddHandler(m.handleInteractionCreate)
	session.AddHandler(m.handleDiscordMessage)
	session.AddHandler(m.handleGuildCreate)
	session.AddHandler(m.handleGuildDelete)

	if err := session.Open(); err != nil {
		return fmt.Errorf("error opening discord session: %w", err)
	}

	select {
	case <-m.signalReady:
		return nil
	case <-time.After(m.config.StartupTimeout):
		return fmt.Errorf(
			"gateway not ready within %s",
			m.config.StartupTimeout,
		)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Matchmaker) shutdown() error {
	m.logger.Info("shutting down")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(m.config.ShutdownTimeout):
		m.logger.Warn("shutdown timeout waiting for pending writes")
	}
	close(m.eventShutdown)
	return nil
}

// RuntimeConfig returns a copy of the current runtime config.
func (m *Matchmaker) RuntimeConfig() RuntimeConfig {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	if m.runtimeConfig == nil {
		return DefaultRuntimeConfig()
	}
	return *m.runtimeConfig
}

// Paused reports whether the bot is paused.
func (m *Matchmaker) Paused() bool {
	return m.RuntimeConfig().Paused
}

// Pause pauses the bot across all instances.
func (m *Matchmaker) Pause(ctx context.Context) error {
	paused := true
	_, err := m.UpdateRuntimeConfig(ctx, RuntimeConfigUpdate{Paused: &paused})
	return err
}

// Resume unpauses the bot across all instances.
func (m *Matchmaker) Resume(ctx context.Context) error {
	paused := false
	_, err := m.UpdateRuntimeConfig(ctx, RuntimeConfigUpdate{Paused: &paused})
	return err
}

// UpdateRuntimeConfig applies a partial runtime config update, persists
// it, and announces the change to other instances.
func (m *Matchmaker) UpdateRuntimeConfig(
	ctx context.Context,
	update RuntimeConfigUpdate,
) (RuntimeConfig, error) {
	if err := validateRuntimeConfigUpdate(update); err != nil {
		return m.RuntimeConfig(), err
	}

	m.cfgMu.Lock()
	if m.runtimeConfig == nil {
		cfg := DefaultRuntimeConfig()
		m.runtimeConfig = &cfg
	}
	updates := update.apply(m.runtimeConfig)
	cfg := *m.runtimeConfig
	m.cfgMu.Unlock()

	if len(updates) == 0 {
		return cfg, nil
	}

	if _, err := m.writeDB.UpdatesWhere(
		&RuntimeConfig{},
		updates,
		"id = ?",
		cfg.ID,
	); err != nil {
		return cfg, fmt.Errorf("error saving runtime config: %w", err)
	}

	m.setRuntimeLevels(cfg)

	if m.dbNotifier != nil {
		if err := m.dbNotifier.NotifyRuntimeConfigChange(ctx); err != nil {
			m.logger.WarnContext(
				ctx,
				"error announcing config change",
				tint.Err(err),
			)
		}
	}
	return cfg, nil
}

// setRuntimeLevels applies the runtime config's log levels to the
// process's level vars.
func (m *Matchmaker) setRuntimeLevels(cfg RuntimeConfig) {
	m.config.LogLevel.Set(cfg.LogLevel.Level())
	m.config.DatabaseLogLevel.Set(cfg.DatabaseLogLevel.Level())
	m.config.Discord.LogLevel.Set(cfg.DiscordLogLevel.Level())
	m.config.Discord.DiscordGoLogLevel.Set(cfg.DiscordGoLogLevel.Level())
	m.config.API.LogLevel.Set(cfg.APILogLevel.Level())
	if m.discord != nil && m.discord.session != nil {
		m.discord.session.SetLogLevel(
			discordgoLogLevel(cfg.DiscordGoLogLevel.Level()),
		)
	}
}

// refreshRuntimeConfig re-reads the runtime config row and applies any
// changes.
func (m *Matchmaker) refreshRuntimeConfig(ctx context.Context) {
	var cfg RuntimeConfig
	if err := m.writeDB.Last(&cfg); err != nil {
		m.logger.ErrorContext(
			ctx,
			"error refreshing runtime config",
			tint.Err(err),
		)
		return
	}

	m.cfgMu.Lock()
	previous := m.runtimeConfig
	m.runtimeConfig = &cfg
	m.cfgMu.Unlock()

	m.setRuntimeLevels(cfg)

	if previous != nil &&
		previous.customStatus(m.config.Environment) !=
			cfg.customStatus(m.config.Environment) {
		if err := m.discord.updateCustomStatus(
			cfg.customStatus(m.config.Environment),
		); err != nil {
			m.logger.WarnContext(ctx, "error updating status", tint.Err(err))
		}
	}
	m.logger.DebugContext(ctx, "runtime config refreshed")
}

func (m *Matchmaker) startRuntimeConfigRefresher(ctx context.Context) {
	ttl := m.config.RuntimeConfigTTL
	var tick <-chan time.Time
	if ttl > 0 {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.eventShutdown:
			return
		case <-tick:
			m.refreshRuntimeConfig(ctx)
		case <-m.triggerRuntimeConfigRefreshCh:
			m.refreshRuntimeConfig(ctx)
		}
	}
}

func (m *Matchmaker) startUserCacheRefresher(ctx context.Context) {
	ttl := m.config.UserCacheTTL
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.eventShutdown:
			return
		case <-ticker.C:
			if _, err := m.writeDB.LoadUsers(); err != nil {
				m.logger.ErrorContext(
					ctx,
					"error reloading users",
					tint.Err(err),
				)
			}
		}
	}
}

func (m *Matchmaker) startAdExpirySweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.eventShutdown:
			return
		case <-ticker.C:
			if m.Paused() {
				continue
			}
			handled, err := m.expireDueAds(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger.ErrorContext(ctx, "expiry sweep failed", tint.Err(err))
			}
			if handled > 0 {
				m.logger.InfoContext(
					ctx,
					"expiry sweep finished",
					"handled", handled,
				)
			}
		}
	}
}

// handleReady syncs guild membership and presence once the gateway
// session is ready.
func (m *Matchmaker) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	ctx := WithLogger(context.Background(), m.logger)
	m.logger.InfoContext(
		ctx,
		"gateway ready",
		"guilds", len(r.Guilds),
		"user", r.User.Username,
	)

	for _, guild := range r.Guilds {
		m.syncGuild(ctx, guild.ID, guild.Name)
	}

	status := m.RuntimeConfig().customStatus(m.config.Environment)
	if err := m.discord.updateCustomStatus(status); err != nil {
		m.logger.WarnContext(ctx, "error setting status", tint.Err(err))
	}

	select {
	case m.signalReady <- struct{}{}:
	default:
	}
}

// syncGuild upserts the guild roster row and enforces the staging
// allowlist.
func (m *Matchmaker) syncGuild(ctx context.Context, guildID string, name string) {
	if _, err := m.writeDB.Save(
		&BotGuild{GuildID: guildID, Name: name},
	); err != nil {
		m.logger.ErrorContext(ctx, "error saving guild", tint.Err(err))
	}

	allowed, err := guildAllowed(m.writeDB, guildID, m.config.Environment)
	if err != nil {
		m.logger.ErrorContext(ctx, "error checking allowlist", tint.Err(err))
		return
	}
	if !allowed {
		m.logger.InfoContext(
			ctx,
			"leaving guild not on allowlist",
			"guild_id", guildID,
		)
		if err = m.discord.session.GuildLeave(
			guildID,
			discordgo.WithContext(ctx),
		); err != nil {
			m.logger.WarnContext(ctx, "error leaving guild", tint.Err(err))
		}
	}
}

func (m *Matchmaker) handleGuildCreate(
	_ *discordgo.Session,
	gc *discordgo.GuildCreate,
) {
	ctx := WithLogger(context.Background(), m.logger)
	m.logger.InfoContext(
		ctx,
		"joined guild",
		"guild_id", gc.ID,
		"name", gc.Name,
	)
	if err := incrementCounter(m.writeDB, counterGuildJoins, 1); err != nil {
		m.logger.WarnContext(ctx, "error incrementing counter", tint.Err(err))
	}
	m.syncGuild(ctx, gc.ID, gc.Name)
}

func (m *Matchmaker) handleGuildDelete(
	_ *discordgo.Session,
	gd *discordgo.GuildDelete,
) {
	if gd.Unavailable {
		// outage, not a removal
		return
	}
	ctx := WithLogger(context.Background(), m.logger)
	m.logger.InfoContext(ctx, "removed from guild", "guild_id", gd.ID)
	if err := incrementCounter(m.writeDB, counterGuildLeaves, 1); err != nil {
		m.logger.WarnContext(ctx, "error incrementing counter", tint.Err(err))
	}
	if _, err := m.writeDB.Delete(&BotGuild{}, "guild_id = ?", gd.ID); err != nil {
		m.logger.ErrorContext(ctx, "error removing guild row", tint.Err(err))
	}
}

// handleInteractionCreate is the single gateway entrypoint for slash
// commands, components, and modals. It follows the ack -> SQL -> Discord
// pattern: handlers acknowledge quickly, persist, and only then do
// slower Discord work.
func (m *Matchmaker) handleInteractionCreate(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
) {
	logger := m.logger.With(loggerNameKey, "interactions")
	ctx := WithLogger(context.Background(), logger)
	defer m.handleRecover(ctx, i)

	user := interactionUser(i)
	if user == nil || user.Bot {
		return
	}

	dbUser, _, err := m.writeDB.GetOrCreateUser(ctx, *user)
	if err != nil {
		logger.ErrorContext(ctx, "error loading user", tint.Err(err))
		m.respondEphemeral(ctx, i, m.RuntimeConfig().DiscordErrorMessage)
		return
	}
	if dbUser.Ignored {
		logger.WarnContext(
			ctx,
			"ignoring interaction from ignored user",
			userLogAttrs(*dbUser)...,
		)
		return
	}

	// audit log off the critical path
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, logErr := m.writeDB.Create(NewInteractionLog(i, user)); logErr != nil {
			logger.ErrorContext(
				ctx,
				"error saving interaction log",
				tint.Err(logErr),
			)
		}
	}()

	if m.Paused() && user.ID != m.config.OwnerUserID {
		m.respondEphemeral(
			ctx,
			i,
			"Matchmaker is briefly paused for maintenance - try again soon.",
		)
		return
	}

	logger.InfoContext(
		ctx,
		"interaction received",
		append(
			interactionLogAttrs(*i),
			"name", interactionName(i),
			"user_id", user.ID,
		)...,
	)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		m.routeCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		m.routeComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		m.routeModal(ctx, i)
	default:
		logger.WarnContext(ctx, "unhandled interaction type", "type", i.Type)
	}
}

func (m *Matchmaker) routeCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	switch i.ApplicationCommandData().Name {
	case commandLFG:
		m.handleLFGCommand(ctx, i)
	case commandLFGChannel:
		m.handleLFGChannelCommand(ctx, i)
	case commandLFGTimeout:
		m.handleTimeoutCommand(ctx, i)
	case commandLFGTimeoutStatus:
		m.handleTimeoutStatusCommand(ctx, i)
	case commandWhitelist:
		m.handleWhitelistCommand(ctx, i)
	case commandAllowlist:
		m.handleAllowlistCommand(ctx, i)
	case commandDeleteMyData:
		m.handleDeleteMyData(ctx, i)
	case commandStatus:
		m.handleStatusCommand(ctx, i)
	default:
		m.respondEphemeral(ctx, i, m.RuntimeConfig().DiscordErrorMessage)
	}
}

func (m *Matchmaker) routeComponent(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	customID := i.MessageComponentData().CustomID
	parts := strings.Split(customID, ":")

	switch parts[0] {
	case customIDConnectPrefix:
		if len(parts) != 2 {
			break
		}
		adID, err := parseUintID(parts[1])
		if err != nil {
			break
		}
		m.handleConnectButton(ctx, i, adID)
		return
	case customIDReportPrefix:
		if len(parts) != 2 {
			break
		}
		adID, err := parseUintID(parts[1])
		if err != nil {
			break
		}
		m.handleReportButton(ctx, i, adID)
		return
	case customIDReportActionPrefix:
		if len(parts) != 3 {
			break
		}
		reportID, err := parseUintID(parts[2])
		if err != nil {
			break
		}
		m.handleReportAction(ctx, i, parts[1], reportID)
		return
	case customIDPrivacyConfirm:
		m.handlePrivacyConfirm(ctx, i)
		return
	case customIDPrivacyCancel:
		m.handlePrivacyCancel(ctx, i)
		return
	}

	m.logger.WarnContext(ctx, "unknown component", "custom_id", customID)
	m.respondEphemeral(ctx, i, m.RuntimeConfig().DiscordErrorMessage)
}

func (m *Matchmaker) routeModal(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	customID := i.ModalSubmitData().CustomID
	parts := strings.Split(customID, ":")

	switch parts[0] {
	case customIDReportModalPrefix:
		if len(parts) != 2 {
			break
		}
		adID, err := parseUintID(parts[1])
		if err != nil {
			break
		}
		m.handleReportModal(ctx, i, adID)
		return
	case customIDReportActionModalPrefix:
		if len(parts) != 3 {
			break
		}
		reportID, err := parseUintID(parts[2])
		if err != nil {
			break
		}
		m.handleReportActionModal(ctx, i, parts[1], reportID)
		return
	}

	m.logger.WarnContext(ctx, "unknown modal", "custom_id", customID)
	m.respondEphemeral(ctx, i, m.RuntimeConfig().DiscordErrorMessage)
}

// handleRecover keeps a panicking handler from taking down the gateway
// goroutine, and tries to leave the user with a generic error instead of
// a hung interaction.
func (m *Matchmaker) handleRecover(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	rc := recover()
	if rc == nil {
		return
	}
	m.logger.ErrorContext(
		ctx,
		"panic in interaction handler",
		"panic", rc,
		"stack", string(debug.Stack()),
	)
	if i != nil {
		m.respondEphemeral(ctx, i, m.RuntimeConfig().DiscordErrorMessage)
	}
}

// Stop requests a shutdown, including other instances when running on
// postgres.
func (m *Matchmaker) Stop(ctx context.Context) error {
	if m.dbNotifier != nil {
		if err := m.dbNotifier.NotifyStop(ctx); err != nil {
			m.logger.WarnContext(ctx, "error announcing stop", tint.Err(err))
		}
	}
	select {
	case m.signalStop <- struct{}{}:
	default:
	}
	return nil
}
