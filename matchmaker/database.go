package matchmaker

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	dbTypeSQLite   = "sqlite"
	dbTypePostgres = "postgres"

	// dbOperationTimeout bounds individual write operations issued
	// through the DBI interface.
	dbOperationTimeout = 30 * time.Second

	// notifyChannelRuntimeConfig is the postgres NOTIFY channel used to
	// announce runtime config changes across bot instances.
	notifyChannelRuntimeConfig = "matchmaker_runtime_config"

	// notifyChannelStop announces a remote stop request.
	notifyChannelStop = "matchmaker_stop"

	// recordSeparator delimits the sender instance ID from the payload
	// in NOTIFY messages, so instances can ignore their own.
	recordSeparator = string(rune(30))
)

// ModelUintID is an embeddable base for models with an auto-incrementing
// uint primary key.
type ModelUintID struct {
	ID uint `gorm:"primarykey" json:"id"`
}

// ModelUnixTime is an embeddable base adding create/update timestamps
// stored as unix milliseconds.
type ModelUnixTime struct {
	CreatedAt int64 `gorm:"autoCreateTime:milli" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime:milli" json:"updated_at"`
}

// Duration wraps time.Duration so it can be stored as an integer column
// and rendered as a duration string in JSON.
type Duration struct {
	time.Duration
}

func (d Duration) Value() (driver.Value, error) {
	return int64(d.Duration), nil
}

func (d *Duration) Scan(value any) error {
	switch v := value.(type) {
	case int64:
		d.Duration = time.Duration(v)
		return nil
	case []byte:
		parsed, err := time.ParseDuration(string(v))
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid type for Duration: %T", value)
	}
}

func (Duration) GormDataType() string {
	return "bigint"
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// NullableString stores as NULL when empty.
type NullableString string

func (n *NullableString) Scan(value any) error {
	if value == nil {
		*n = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*n = NullableString(v)
	case []byte:
		*n = NullableString(v)
	default:
		return fmt.Errorf("invalid type for NullableString: %T", value)
	}
	return nil
}

func (n NullableString) Value() (driver.Value, error) {
	if n == "" {
		return nil, nil
	}
	return string(n), nil
}

func (NullableString) GormDataType() string {
	return "string"
}

// DBI is the write interface in front of *gorm.DB. Writes are serialized
// behind a mutex when the backing store is SQLite, and every operation
// gets its own timeout.
//
// It also owns the in-memory user cache.
type DBI interface {
	// DB returns the underlying gorm.DB, for reads.
	DB() *gorm.DB

	Create(value any) (rowsAffected int64, err error)
	Save(value any) (rowsAffected int64, err error)
	Update(model any, column string, value any) (rowsAffected int64, err error)
	Updates(model any, values any) (rowsAffected int64, err error)
	UpdatesWhere(
		model any,
		values map[string]any,
		query any,
		args ...any,
	) (rowsAffected int64, err error)
	Delete(value any, where ...any) (rowsAffected int64, err error)
	Transaction(fc func(tx *gorm.DB) error) error
	Last(value any, where ...any) error

	// GetUser returns a user from the in-memory cache.
	GetUser(userID string) (*User, bool)

	// GetOrCreateUser returns the cached user, creating a record on
	// first sight and refreshing stored names when they drift.
	GetOrCreateUser(ctx context.Context, u discordgo.User) (
		user *User,
		isNew bool,
		err error,
	)

	// ReloadUser re-reads a single user from the database into the cache.
	ReloadUser(userID string) (*User, error)

	// LoadUsers populates the cache from the database.
	LoadUsers() ([]User, error)

	// ForgetUser drops a user from the in-memory cache.
	ForgetUser(userID string)

	UserCacheTTL() time.Duration
	SetUserCacheTTL(ttl time.Duration)
}

type database struct {
	db     *gorm.DB
	logger *slog.Logger

	// non-nil only for sqlite, where concurrent writers are a problem
	writeMu *sync.Mutex

	userCacheMu   sync.RWMutex
	users        map[string]*User
	userCacheTTL time.Duration
	lastUserLoad time.Time
}

// CreateDB opens the database indicated by databaseType ("sqlite" or
// "postgres"), runs migrations, and returns the write interface.
func CreateDB(
	ctx context.Context,
	databaseType string,
	dsn string,
) (DBI, error) {
	logHandler := tint.NewHandler(
		os.Stdout,
		&tint.Options{Level: DefaultDatabaseLogLevel, AddSource: true},
	)
	logger := slog.New(logHandler).With(loggerNameKey, "database")

	db, err := getDB(databaseType, dsn, logHandler)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if databaseType == dbTypeSQLite {
		if rv := db.Exec("PRAGMA foreign_keys = ON"); rv.Error != nil {
			return nil, fmt.Errorf("error enabling foreign keys: %w", rv.Error)
		}
	}

	err = db.WithContext(ctx).Transaction(
		func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&User{},
				&InteractionLog{},
				&RuntimeConfig{},
				&Ad{},
				&AdPost{},
				&AdClick{},
				&Report{},
				&ReportConversation{},
				&UserTimeout{},
				&GuildSettings{},
				&AllowedGuild{},
				&WhitelistEntry{},
				&PostCooldown{},
				&BotGuild{},
				&BotCounter{},
			)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	d := &database{
		db:           db,
		logger:       logger,
		users:        map[string]*User{},
		userCacheTTL: DefaultUserCacheTTL,
	}
	if databaseType == dbTypeSQLite {
		d.writeMu = &sync.Mutex{}
	}
	return d, nil
}

func getDB(
	databaseType string,
	dsn string,
	logHandler slog.Handler,
) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: newGORMLogger(
			logHandler,
			DefaultDatabaseSlowThreshold,
		),
	}
	switch databaseType {
	case dbTypeSQLite:
		return gorm.Open(sqlite.Open(dsn), gormConfig)
	case dbTypePostgres:
		return gorm.Open(postgres.Open(dsn), gormConfig)
	default:
		return nil, fmt.Errorf("unknown database type: %s", databaseType)
	}
}

func (d *database) DB() *gorm.DB {
	return d.db
}

func (d *database) lock() func() {
	if d.writeMu == nil {
		return func() {}
	}
	d.writeMu.Lock()
	return d.writeMu.Unlock
}

func (d *database) Create(value any) (int64, error) {
	defer d.lock()()
	ctx, cancel := context.WithTimeout(context.Background(), dbOperationTimeout)
	defer cancel()
	tx := d.db.WithContext(ctx).Create(value)
	return tx.RowsAffected, tx.Error
}

func (d *database) Save(value any) (int64, error) {
	defer d.lock()()
	ctx, cancel := context.WithTimeout(context.Background(), dbOperationTimeout)
	defer cancel()
	tx := d.db.WithContext(ctx).Save(value)
	return tx.RowsAffected, tx.Error
}

func (d *database) Update(model any, column string, value any) (int64, error) {
	defer d.lock()()
	ctx, cancel := context.WithTimeout(context.Background(), dbOperationTimeout)
	defer cancel()
	tx := d.db.WithContext(ctx).Model(model).Update(column, value)
	return tx.RowsAffected, tx.Error
}

func (d *database) Updates(model any, values any) (int64, error) {
	defer d.lock()()
	ctx, cancel := context.WithTimeout(context.Background(), dbOperationTimeout)
	defer cancel()
	tx := d.db.WithContext(ctx).Model(model).Updates(values)
	return tx.RowsAffected, tx.Error
}

func (d *database) UpdatesWhere(
	model any,
	values map[string]any,
	query any,
	args ...any,
) (int64, error) {
	defer d.lock()()
	ctx, cancel := context.WithTimeout(context.Background(), dbOperationTimeout)
	defer cancel()
	tx := d.db.WithContext(ctx).Model(model).Where(query, args...).Updates(values)
	return tx.RowsAffected, tx.Error
}

func (d *database) Delete(value any, where ...any) (int64, error) {
	defer d.lock()()
	ctx, cancel := context.WithTimeout(context.Background(), dbOperationTimeout)
	defer cancel()
	tx := d.db.WithContext(ctx).Delete(value, where...)
	return tx.RowsAffected, tx.Error
}

func (d *database) Transaction(fc func(tx *gorm.DB) error) error {
	defer d.lock()()
	ctx, cancel := context.WithTimeout(context.Background(), dbOperationTimeout)
	defer cancel()
	return d.db.WithContext(ctx).Transaction(fc)
}

func (d *database) Last(value any, where ...any) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbOperationTimeout)
	defer cancel()
	return d.db.WithContext(ctx).Last(value, where...).Error
}

func (d *database) UserCacheTTL() time.Duration {
	d.userCacheMu.RLock()
	defer d.userCacheMu.RUnlock()
	return d.userCacheTTL
}

func (d *database) SetUserCacheTTL(ttl time.Duration) {
	d.userCacheMu.Lock()
	defer d.userCacheMu.Unlock()
	d.userCacheTTL = ttl
}

func (d *database) GetUser(userID string) (*User, bool) {
	d.userCacheMu.RLock()
	defer d.userCacheMu.RUnlock()
	u, ok := d.users[userID]
	return u, ok
}

func (d *database) LoadUsers() ([]User, error) {
	var users []User
	if err := d.db.Find(&users).Error; err != nil {
		return nil, err
	}
	d.userCacheMu.Lock()
	defer d.userCacheMu.Unlock()
	for i := range users {
		u := users[i]
		d.users[u.ID] = &u
	}
	d.lastUserLoad = time.Now()
	return users, nil
}

func (d *database) ForgetUser(userID string) {
	d.userCacheMu.Lock()
	defer d.userCacheMu.Unlock()
	delete(d.users, userID)
}

func (d *database) ReloadUser(userID string) (*User, error) {
	var user User
	err := d.db.Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, err
	}
	d.userCacheMu.Lock()
	defer d.userCacheMu.Unlock()
	d.users[user.ID] = &user
	return &user, nil
}

func (d *database) GetOrCreateUser(
	ctx context.Context,
	u discordgo.User,
) (*User, bool, error) {
	log, ok := ContextLogger(ctx)
	if !ok || log == nil {
		log = d.logger
	}

	now := time.Now().UnixMilli()

	if existing, found := d.GetUser(u.ID); found {
		updates := map[string]any{columnUserLastSeen: now}
		if existing.Username != u.Username {
			updates[columnUserUsername] = u.Username
		}
		if existing.GlobalName != u.GlobalName {
			updates[columnUserGlobalName] = u.GlobalName
		}
		if _, err := d.Updates(existing, updates); err != nil {
			return existing, false, fmt.Errorf("error updating user: %w", err)
		}
		d.userCacheMu.Lock()
		existing.Username = u.Username
		existing.GlobalName = u.GlobalName
		existing.LastSeen = now
		d.userCacheMu.Unlock()
		return existing, false, nil
	}

	user := NewUser(u)
	user.LastSeen = now
	if _, err := d.Create(user); err != nil {
		return nil, false, fmt.Errorf("error creating user: %w", err)
	}
	log.InfoContext(ctx, "new user", userLogAttrs(*user)...)

	d.userCacheMu.Lock()
	d.users[user.ID] = user
	d.userCacheMu.Unlock()
	return user, true, nil
}

// DBNotifier fans out cross-instance signals: runtime config refreshes
// and stop requests. The postgres implementation uses LISTEN/NOTIFY;
// sqlite (single instance by definition) uses in-process channels.
type DBNotifier interface {
	// ID identifies this instance, so it can discard its own notifications.
	ID() string

	// NotifyRuntimeConfigChange announces that the runtime config row
	// was updated.
	NotifyRuntimeConfigChange(ctx context.Context) error

	// NotifyStop requests that all instances shut down.
	NotifyStop(ctx context.Context) error

	// Listen blocks, receiving notifications until ctx is cancelled.
	Listen(ctx context.Context) error
}

type sqliteNotifier struct {
	id     string
	mm     *Matchmaker
	logger *slog.Logger
}

func newSQLiteNotifier(m *Matchmaker) (*sqliteNotifier, error) {
	id, err := generateRandomHexString(12)
	if err != nil {
		return nil, err
	}
	return &sqliteNotifier{
		id:     id,
		mm:     m,
		logger: m.logger.With(loggerNameKey, "sqlite_notifier"),
	}, nil
}

func (n *sqliteNotifier) ID() string {
	return n.id
}

func (n *sqliteNotifier) NotifyRuntimeConfigChange(ctx context.Context) error {
	select {
	case n.mm.triggerRuntimeConfigRefreshCh <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	default:
		n.logger.Warn("runtime config refresh already pending")
	}
	return nil
}

func (n *sqliteNotifier) NotifyStop(ctx context.Context) error {
	select {
	case n.mm.signalStop <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	default:
		n.logger.Warn("stop signal already pending")
	}
	return nil
}

func (n *sqliteNotifier) Listen(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type postgresNotifier struct {
	id     string
	pool   *pgxpool.Pool
	mm     *Matchmaker
	logger *slog.Logger
}

func newPostgresNotifier(ctx context.Context, m *Matchmaker, dsn string) (
	*postgresNotifier,
	error,
) {
	id, err := generateRandomHexString(12)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error creating pgx pool: %w", err)
	}
	return &postgresNotifier{
		id:     id,
		pool:   pool,
		mm:     m,
		logger: m.logger.With(loggerNameKey, "postgres_notifier"),
	}, nil
}

func (n *postgresNotifier) ID() string {
	return n.id
}

func (n *postgresNotifier) notify(
	ctx context.Context,
	channel string,
	payload string,
) error {
	_, err := n.pool.Exec(
		ctx,
		"SELECT pg_notify($1, $2)",
		channel,
		fmt.Sprintf("%s%s%s", n.id, recordSeparator, payload),
	)
	return err
}

func (n *postgresNotifier) NotifyRuntimeConfigChange(ctx context.Context) error {
	return n.notify(ctx, notifyChannelRuntimeConfig, "refresh")
}

func (n *postgresNotifier) NotifyStop(ctx context.Context) error {
	return n.notify(ctx, notifyChannelStop, "stop")
}

func (n *postgresNotifier) Listen(ctx context.Context) error {
	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("error acquiring listen connection: %w", err)
	}
	defer conn.Release()

	for _, channel := range []string{
		notifyChannelRuntimeConfig,
		notifyChannelStop,
	} {
		if _, err = conn.Exec(
			ctx,
			fmt.Sprintf("LISTEN %s", channel),
		); err != nil {
			return fmt.Errorf("error listening on %s: %w", channel, err)
		}
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			n.logger.Error("notification wait failed", tint.Err(err))
			return err
		}

		senderID, payload, found := strings.Cut(
			notification.Payload,
			recordSeparator,
		)
		if !found {
			n.logger.Warn(
				"malformed notification payload",
				"payload", notification.Payload,
			)
			continue
		}
		if senderID == n.id {
			continue
		}
		n.logger.Info(
			"received notification",
			"channel", notification.Channel,
			"sender", senderID,
			"payload", payload,
		)

		switch notification.Channel {
		case notifyChannelRuntimeConfig:
			select {
			case n.mm.triggerRuntimeConfigRefreshCh <- struct{}{}:
			default:
			}
		case notifyChannelStop:
			select {
			case n.mm.signalStop <- struct{}{}:
			default:
			}
		}
	}
}
