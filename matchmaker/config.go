package matchmaker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
)

// Environment names. In staging, the bot only stays in guilds present
// in the allowed_guilds table.
const (
	EnvironmentProduction = "production"
	EnvironmentStaging    = "staging"
)

const (
	DefaultDatabaseType          = dbTypeSQLite
	DefaultDatabase              = "matchmaker.sqlite3"
	DefaultDatabaseSlowThreshold = 200 * time.Millisecond

	DefaultEnvironment = EnvironmentProduction

	DefaultRuntimeConfigTTL = 5 * time.Minute
	DefaultUserCacheTTL     = time.Hour

	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 60 * time.Second

	DefaultAPIListen         = "127.0.0.1:5000"
	DefaultReadTimeout       = 5 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 30 * time.Second
	DefaultCORSMaxAge        = 12 * time.Hour

	// DefaultEnvPrefix is the default prefix for environment variables.
	DefaultEnvPrefix = "MATCHMAKER"

	// EnvvarSetEnvPrefix overrides the environment variable prefix.
	EnvvarSetEnvPrefix = "MATCHMAKER_SET_ENV_PREFIX"
)

var (
	DefaultLogLevel          = slog.LevelInfo
	DefaultDatabaseLogLevel  = slog.LevelWarn
	DefaultDiscordLogLevel   = slog.LevelInfo
	DefaultDiscordgoLogLevel = slog.LevelWarn
	DefaultAPILogLevel       = slog.LevelInfo

	DefaultCORSAllowMethods = []string{
		"GET",
		"HEAD",
		"OPTIONS",
	}
	DefaultCORSAllowHeaders = []string{
		"Content-Type",
		"Origin",
		"Accept",
	}
	DefaultCORSExposeHeaders = []string{"Content-Type"}
)

// DefaultDiscordGatewayIntent covers guild lifecycle events, guild
// messages in report channels, and the DM relay (which requires
// message content).
const DefaultDiscordGatewayIntent = discordgo.IntentGuilds |
	discordgo.IntentGuildMessages |
	discordgo.IntentDirectMessages |
	discordgo.IntentMessageContent

var structValidator = validator.New(validator.WithRequiredStructEnabled())

//nolint:gochecknoinits // gotta register the validator tag
func init() {
	structValidator.SetTagName("binding")
}

// Config holds the static configuration, loaded from file/environment at
// startup. Operational knobs live in [RuntimeConfig].
type Config struct {
	// DatabaseType indicates the type of database to use
	// (sqlite or postgres)
	DatabaseType string `yaml:"database_type" mapstructure:"database_type" binding:"oneof=sqlite postgres"`

	// Database is the sqlite filepath or postgres DSN
	Database string `yaml:"database" mapstructure:"database" binding:"required" log:"[redacted]"`

	// DatabaseSlowThreshold is the threshold above which GORM logs
	// slow queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold"`

	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level"`

	// Environment selects production or staging behavior.
	Environment string `yaml:"environment" mapstructure:"environment" binding:"omitempty,oneof=production staging"`

	// OwnerUserID is the Discord user ID of the bot owner. The owner
	// passes every moderator gate and manages the whitelist.
	OwnerUserID string `yaml:"owner_user_id" mapstructure:"owner_user_id"`

	// StartupTimeout is the max time to wait for the gateway session
	// and command registration before aborting startup.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout"`

	// ShutdownTimeout bounds the graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// RuntimeConfigTTL is the interval at which the DB-backed runtime
	// config is refreshed (0 disables the refresher).
	RuntimeConfigTTL time.Duration `yaml:"runtime_config_ttl" mapstructure:"runtime_config_ttl"`

	// UserCacheTTL is the interval at which the in-memory user cache
	// is reloaded from the database (0 disables periodic reloads).
	UserCacheTTL time.Duration `yaml:"user_cache_ttl" mapstructure:"user_cache_ttl"`

	Discord DiscordConfig `yaml:"discord" mapstructure:"discord"`

	API APIConfig `yaml:"api" mapstructure:"api"`

	// Development enables more verbose errors and gin debug mode.
	Development bool `yaml:"development" mapstructure:"development"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// Validate checks the config's binding constraints.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DiscordConfig holds Discord-specific configuration.
type DiscordConfig struct {
	Token string `yaml:"token" mapstructure:"token" binding:"required" log:"[redacted]"`

	ApplicationID string `yaml:"application_id" mapstructure:"application_id" binding:"required"`

	// GuildID, if set, restricts slash command registration to a single
	// guild (useful in development - global commands propagate slowly).
	GuildID string `yaml:"guild_id" mapstructure:"guild_id"`

	// ReportsGuildID is the moderation guild where report channels are
	// created.
	ReportsGuildID string `yaml:"reports_guild_id" mapstructure:"reports_guild_id"`

	// ReportsCategoryID is the channel category report channels are
	// created under (optional).
	ReportsCategoryID string `yaml:"reports_category_id" mapstructure:"reports_category_id"`

	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level"`

	// DiscordGoLogLevel is the log level for the discordgo library itself.
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level"`
}

func (c DiscordConfig) LogValue() slog.Value {
	return structToSlogValue(c)
}

// APIConfig configures the HTTP health/status API.
type APIConfig struct {
	// Listen address (host:port). Empty disables the API server.
	Listen string `yaml:"listen" mapstructure:"listen"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level"`

	ReadTimeout       time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`

	CORS CORSConfig `yaml:"cors" mapstructure:"cors"`
}

func (c APIConfig) LogValue() slog.Value {
	return structToSlogValue(c)
}

// CORSConfig configures CORS middleware for the API.
type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins" mapstructure:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods" mapstructure:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers" mapstructure:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers" mapstructure:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age"`
}

// DefaultConfig returns a Config with default values set.
func DefaultConfig() *Config {
	logLevel := &slog.LevelVar{}
	logLevel.Set(DefaultLogLevel)

	dbLogLevel := &slog.LevelVar{}
	dbLogLevel.Set(DefaultDatabaseLogLevel)

	discordLogLevel := &slog.LevelVar{}
	discordLogLevel.Set(DefaultDiscordLogLevel)

	discordgoLogLevel := &slog.LevelVar{}
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)

	apiLogLevel := &slog.LevelVar{}
	apiLogLevel.Set(DefaultAPILogLevel)

	return &Config{
		DatabaseType:          DefaultDatabaseType,
		Database:              DefaultDatabase,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		DatabaseLogLevel:      dbLogLevel,
		LogLevel:              logLevel,
		Environment:           DefaultEnvironment,
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		RuntimeConfigTTL:      DefaultRuntimeConfigTTL,
		UserCacheTTL:          DefaultUserCacheTTL,
		Discord: DiscordConfig{
			GatewayIntents:    DefaultDiscordGatewayIntent,
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
		},
		API: APIConfig{
			Listen:            DefaultAPIListen,
			LogLevel:          apiLogLevel,
			ReadTimeout:       DefaultReadTimeout,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
			CORS: CORSConfig{
				AllowMethods:  DefaultCORSAllowMethods,
				AllowHeaders:  DefaultCORSAllowHeaders,
				ExposeHeaders: DefaultCORSExposeHeaders,
				MaxAge:        DefaultCORSMaxAge,
			},
		},
	}
}
