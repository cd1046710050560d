package matchmaker

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultAdTTL                   = 24 * time.Hour
	DefaultAdsPerUserLimit         = 3
	DefaultPostCooldown            = 10 * time.Minute
	DefaultBroadcastConcurrency    = 8
	DefaultBroadcastSendTimeout    = 10 * time.Second
	DefaultBroadcastRatePerSecond  = 10
	DefaultReportDescriptionMaxLen = 120
	DefaultTimeoutMinutes          = 60
	DefaultRelayPrefix             = "!r "

	DefaultDiscordErrorMessage     = "Something went wrong. Please try again later."
	DefaultDiscordRateLimitMessage = "You're doing that too fast - give it a moment."

	defaultCustomStatusProduction = "✅ Matchmaker Bot"
	defaultCustomStatusStaging    = "🧪 Staging Bot"
)

// RuntimeConfig is the operational configuration, stored as a singleton
// row so changes survive restarts and propagate to every instance via
// the DBNotifier.
type RuntimeConfig struct {
	ModelUintID
	ModelUnixTime

	// Paused stops the bot from doing anything beyond acknowledging
	// interactions with a busy message.
	Paused bool `gorm:"default:false" json:"paused"`

	// DiscordCustomStatus overrides the environment-derived custom
	// status when set.
	DiscordCustomStatus string `json:"discord_custom_status"`

	// DiscordErrorMessage is the generic ephemeral reply when a handler
	// fails.
	DiscordErrorMessage string `json:"discord_error_message" binding:"required"`

	// DiscordRateLimitMessage is the ephemeral reply when a user trips
	// a cooldown or the antispam window.
	DiscordRateLimitMessage string `json:"discord_rate_limit_message" binding:"required"`

	// AdTTL is how long a posted ad stays active.
	AdTTL Duration `json:"ad_ttl" binding:"required"`

	// AdsPerUserLimit caps concurrently active ads per user
	// (whitelisted users bypass).
	AdsPerUserLimit int `json:"ads_per_user_limit" binding:"required,min=1"`

	// PostCooldown is the minimum interval between /lfg posts per user
	// (whitelisted users bypass).
	PostCooldown Duration `json:"post_cooldown"`

	// BroadcastConcurrency bounds concurrent sends during ad fan-out.
	BroadcastConcurrency int `json:"broadcast_concurrency" binding:"required,min=1,max=64"`

	// BroadcastSendTimeout bounds each individual broadcast send.
	BroadcastSendTimeout Duration `json:"broadcast_send_timeout" binding:"required"`

	// BroadcastRatePerSecond paces outbound broadcast sends.
	BroadcastRatePerSecond int `json:"broadcast_rate_per_second" binding:"required,min=1"`

	// ReportDescriptionMaxLen caps the report modal's description input.
	ReportDescriptionMaxLen int `json:"report_description_max_len" binding:"required,min=1,max=4000"`

	// DefaultTimeoutMinutes is the timeout applied from the report view
	// when the moderator leaves the duration blank.
	DefaultTimeoutMinutes int `json:"default_timeout_minutes" binding:"required,min=1"`

	// RelayPrefix marks report-channel messages that should be relayed
	// to the reporter's DM.
	RelayPrefix string `json:"relay_prefix" binding:"required"`

	LogLevel          DBLogLevel `json:"log_level" gorm:"check:log_level IN ('DEBUG','INFO','WARN','ERROR')" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	DiscordLogLevel   DBLogLevel `json:"discord_log_level" gorm:"check:discord_log_level IN ('DEBUG','INFO','WARN','ERROR')" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	DiscordGoLogLevel DBLogLevel `json:"discordgo_log_level" gorm:"column:discordgo_log_level;check:discordgo_log_level IN ('DEBUG','INFO','WARN','ERROR')" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	DatabaseLogLevel  DBLogLevel `json:"database_log_level" gorm:"check:database_log_level IN ('DEBUG','INFO','WARN','ERROR')" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	APILogLevel       DBLogLevel `json:"api_log_level" gorm:"check:api_log_level IN ('DEBUG','INFO','WARN','ERROR')" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
}

func (RuntimeConfig) TableName() string {
	return "config"
}

func (r RuntimeConfig) LogValue() slog.Value {
	return structToSlogValue(r)
}

// customStatus returns the configured custom status, or the environment
// default when unset.
func (r RuntimeConfig) customStatus(environment string) string {
	if r.DiscordCustomStatus != "" {
		return r.DiscordCustomStatus
	}
	if environment == EnvironmentStaging {
		return defaultCustomStatusStaging
	}
	return defaultCustomStatusProduction
}

// DefaultRuntimeConfig returns the runtime config seeded on first run.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		DiscordErrorMessage:     DefaultDiscordErrorMessage,
		DiscordRateLimitMessage: DefaultDiscordRateLimitMessage,
		AdTTL:                   Duration{DefaultAdTTL},
		AdsPerUserLimit:         DefaultAdsPerUserLimit,
		PostCooldown:            Duration{DefaultPostCooldown},
		BroadcastConcurrency:    DefaultBroadcastConcurrency,
		BroadcastSendTimeout:    Duration{DefaultBroadcastSendTimeout},
		BroadcastRatePerSecond:  DefaultBroadcastRatePerSecond,
		ReportDescriptionMaxLen: DefaultReportDescriptionMaxLen,
		DefaultTimeoutMinutes:   DefaultTimeoutMinutes,
		RelayPrefix:             DefaultRelayPrefix,
		LogLevel:                DBLogLevelInfo,
		DiscordLogLevel:         DBLogLevelInfo,
		DiscordGoLogLevel:       DBLogLevelWarn,
		DatabaseLogLevel:        DBLogLevelWarn,
		APILogLevel:             DBLogLevelInfo,
	}
}

// RuntimeConfigUpdate is a partial update to RuntimeConfig. Only non-nil
// fields are applied.
type RuntimeConfigUpdate struct {
	Paused                  *bool       `json:"paused,omitempty"`
	DiscordCustomStatus     *string     `json:"discord_custom_status,omitempty"`
	DiscordErrorMessage     *string     `json:"discord_error_message,omitempty" binding:"omitempty,min=1"`
	DiscordRateLimitMessage *string     `json:"discord_rate_limit_message,omitempty" binding:"omitempty,min=1"`
	AdTTL                   *Duration   `json:"ad_ttl,omitempty"`
	AdsPerUserLimit         *int        `json:"ads_per_user_limit,omitempty" binding:"omitempty,min=1"`
	PostCooldown            *Duration   `json:"post_cooldown,omitempty"`
	BroadcastConcurrency    *int        `json:"broadcast_concurrency,omitempty" binding:"omitempty,min=1,max=64"`
	BroadcastSendTimeout    *Duration   `json:"broadcast_send_timeout,omitempty"`
	BroadcastRatePerSecond  *int        `json:"broadcast_rate_per_second,omitempty" binding:"omitempty,min=1"`
	ReportDescriptionMaxLen *int        `json:"report_description_max_len,omitempty" binding:"omitempty,min=1,max=4000"`
	DefaultTimeoutMinutes   *int        `json:"default_timeout_minutes,omitempty" binding:"omitempty,min=1"`
	RelayPrefix             *string     `json:"relay_prefix,omitempty" binding:"omitempty,min=1"`
	LogLevel                *DBLogLevel `json:"log_level,omitempty" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	DiscordLogLevel         *DBLogLevel `json:"discord_log_level,omitempty" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	DiscordGoLogLevel       *DBLogLevel `json:"discordgo_log_level,omitempty" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	DatabaseLogLevel        *DBLogLevel `json:"database_log_level,omitempty" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	APILogLevel             *DBLogLevel `json:"api_log_level,omitempty" binding:"omitempty,oneof=DEBUG INFO WARN ERROR"`
}

// apply merges non-nil fields onto cfg and returns the column/value map
// used for the database update.
func (u RuntimeConfigUpdate) apply(cfg *RuntimeConfig) map[string]any {
	updates := map[string]any{}
	if u.Paused != nil {
		cfg.Paused = *u.Paused
		updates["paused"] = *u.Paused
	}
	if u.DiscordCustomStatus != nil {
		cfg.DiscordCustomStatus = *u.DiscordCustomStatus
		updates["discord_custom_status"] = *u.DiscordCustomStatus
	}
	if u.DiscordErrorMessage != nil {
		cfg.DiscordErrorMessage = *u.DiscordErrorMessage
		updates["discord_error_message"] = *u.DiscordErrorMessage
	}
	if u.DiscordRateLimitMessage != nil {
		cfg.DiscordRateLimitMessage = *u.DiscordRateLimitMessage
		updates["discord_rate_limit_message"] = *u.DiscordRateLimitMessage
	}
	if u.AdTTL != nil {
		cfg.AdTTL = *u.AdTTL
		updates["ad_ttl"] = *u.AdTTL
	}
	if u.AdsPerUserLimit != nil {
		cfg.AdsPerUserLimit = *u.AdsPerUserLimit
		updates["ads_per_user_limit"] = *u.AdsPerUserLimit
	}
	if u.PostCooldown != nil {
		cfg.PostCooldown = *u.PostCooldown
		updates["post_cooldown"] = *u.PostCooldown
	}
	if u.BroadcastConcurrency != nil {
		cfg.BroadcastConcurrency = *u.BroadcastConcurrency
		updates["broadcast_concurrency"] = *u.BroadcastConcurrency
	}
	if u.BroadcastSendTimeout != nil {
		cfg.BroadcastSendTimeout = *u.BroadcastSendTimeout
		updates["broadcast_send_timeout"] = *u.BroadcastSendTimeout
	}
	if u.BroadcastRatePerSecond != nil {
		cfg.BroadcastRatePerSecond = *u.BroadcastRatePerSecond
		updates["broadcast_rate_per_second"] = *u.BroadcastRatePerSecond
	}
	if u.ReportDescriptionMaxLen != nil {
		cfg.ReportDescriptionMaxLen = *u.ReportDescriptionMaxLen
		updates["report_description_max_len"] = *u.ReportDescriptionMaxLen
	}
	if u.DefaultTimeoutMinutes != nil {
		cfg.DefaultTimeoutMinutes = *u.DefaultTimeoutMinutes
		updates["default_timeout_minutes"] = *u.DefaultTimeoutMinutes
	}
	if u.RelayPrefix != nil {
		cfg.RelayPrefix = *u.RelayPrefix
		updates["relay_prefix"] = *u.RelayPrefix
	}
	if u.LogLevel != nil {
		cfg.LogLevel = *u.LogLevel
		updates["log_level"] = *u.LogLevel
	}
	if u.DiscordLogLevel != nil {
		cfg.DiscordLogLevel = *u.DiscordLogLevel
		updates["discord_log_level"] = *u.DiscordLogLevel
	}
	if u.DiscordGoLogLevel != nil {
		cfg.DiscordGoLogLevel = *u.DiscordGoLogLevel
		updates["discordgo_log_level"] = *u.DiscordGoLogLevel
	}
	if u.DatabaseLogLevel != nil {
		cfg.DatabaseLogLevel = *u.DatabaseLogLevel
		updates["database_log_level"] = *u.DatabaseLogLevel
	}
	if u.APILogLevel != nil {
		cfg.APILogLevel = *u.APILogLevel
		updates["api_log_level"] = *u.APILogLevel
	}
	return updates
}

// validateRuntimeConfigUpdate checks the update's binding constraints.
func validateRuntimeConfigUpdate(u RuntimeConfigUpdate) error {
	if err := structValidator.Struct(u); err != nil {
		return fmt.Errorf("invalid runtime config update: %w", err)
	}
	if u.AdTTL != nil && u.AdTTL.Duration <= 0 {
		return fmt.Errorf("ad_ttl must be positive")
	}
	if u.BroadcastSendTimeout != nil && u.BroadcastSendTimeout.Duration <= 0 {
		return fmt.Errorf("broadcast_send_timeout must be positive")
	}
	return nil
}
