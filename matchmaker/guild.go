package matchmaker

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Counter names tracked in bot_counters.
const (
	counterGuildJoins  = "guild_joins"
	counterGuildLeaves = "guild_leaves"
	counterAdsPosted   = "ads_posted"
	counterConnects    = "connects"
	counterReports     = "reports"
)

// GuildSettings holds per-guild configuration. A guild becomes a
// broadcast target once a moderator sets its LFG channel.
type GuildSettings struct {
	GuildID string `gorm:"primaryKey" json:"guild_id"`

	// LFGChannelID is the channel ad broadcasts are posted to. Empty
	// means the guild receives no broadcasts.
	LFGChannelID string `json:"lfg_channel_id"`

	UpdatedBy string `json:"updated_by"`

	ModelUnixTime
}

func (GuildSettings) TableName() string {
	return "guild_settings"
}

// AllowedGuild allowlists a guild for a given environment. Only consulted
// in staging, where the bot leaves guilds that aren't allowlisted.
type AllowedGuild struct {
	ModelUintID
	ModelUnixTime

	GuildID     string `gorm:"uniqueIndex:idx_allowed_guilds_guild_env" json:"guild_id"`
	Environment string `gorm:"uniqueIndex:idx_allowed_guilds_guild_env" json:"environment"`
	AddedBy     string `json:"added_by"`
}

func (AllowedGuild) TableName() string {
	return "allowed_guilds"
}

// BotGuild is a row per guild the bot is currently a member of.
type BotGuild struct {
	GuildID string `gorm:"primaryKey" json:"guild_id"`
	Name    string `json:"name"`

	ModelUnixTime
}

func (BotGuild) TableName() string {
	return "bot_guilds"
}

// BotCounter is a named monotonic counter (guild joins, ads posted, ...).
type BotCounter struct {
	Name  string `gorm:"primaryKey" json:"name"`
	Value int64  `json:"value"`

	ModelUnixTime
}

func (BotCounter) TableName() string {
	return "bot_counters"
}

// incrementCounter bumps a named counter, creating it on first use.
func incrementCounter(db DBI, name string, delta int64) error {
	return db.Transaction(
		func(tx *gorm.DB) error {
			var counter BotCounter
			err := tx.Where("name = ?", name).First(&counter).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				counter = BotCounter{Name: name, Value: delta}
				return tx.Create(&counter).Error
			case err != nil:
				return err
			default:
				return tx.Model(&counter).Update(
					"value",
					counter.Value+delta,
				).Error
			}
		},
	)
}

// counterValue reads a named counter, returning 0 when unset.
func counterValue(db DBI, name string) (int64, error) {
	var counter BotCounter
	err := db.DB().Where("name = ?", name).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

// getGuildSettings returns the settings row for a guild, or an empty row
// if none exists yet.
func getGuildSettings(db DBI, guildID string) (*GuildSettings, error) {
	var settings GuildSettings
	err := db.DB().Where("guild_id = ?", guildID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &GuildSettings{GuildID: guildID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading guild settings: %w", err)
	}
	return &settings, nil
}

// setLFGChannel sets (or clears, with an empty channel ID) the guild's
// broadcast channel.
func setLFGChannel(
	db DBI,
	guildID string,
	channelID string,
	updatedBy string,
) error {
	settings, err := getGuildSettings(db, guildID)
	if err != nil {
		return err
	}
	settings.LFGChannelID = channelID
	settings.UpdatedBy = updatedBy
	if _, err = db.Save(settings); err != nil {
		return fmt.Errorf("error saving guild settings: %w", err)
	}
	return nil
}

// broadcastTargets returns every guild with a configured LFG channel.
func broadcastTargets(db DBI) ([]GuildSettings, error) {
	var targets []GuildSettings
	err := db.DB().Where("lfg_channel_id <> ''").Find(&targets).Error
	if err != nil {
		return nil, fmt.Errorf("error loading broadcast targets: %w", err)
	}
	return targets, nil
}

// guildAllowed reports whether a guild may use the bot in the given
// environment. Production guilds are always allowed.
func guildAllowed(db DBI, guildID string, environment string) (bool, error) {
	if environment != EnvironmentStaging {
		return true, nil
	}
	var count int64
	err := db.DB().Model(&AllowedGuild{}).Where(
		"guild_id = ? AND environment = ?",
		guildID,
		environment,
	).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("error checking allowed guilds: %w", err)
	}
	return count > 0, nil
}

// allowGuild adds a guild to the environment allowlist.
func allowGuild(db DBI, guildID string, environment string, addedBy string) error {
	allowed, err := guildAllowed(db, guildID, environment)
	if err != nil {
		return err
	}
	if allowed && environment == EnvironmentStaging {
		return nil
	}
	_, err = db.Create(
		&AllowedGuild{
			GuildID:     guildID,
			Environment: environment,
			AddedBy:     addedBy,
		},
	)
	return err
}

// disallowGuild removes a guild from the environment allowlist.
func disallowGuild(db DBI, guildID string, environment string) (bool, error) {
	rows, err := db.Delete(
		&AllowedGuild{},
		"guild_id = ? AND environment = ?",
		guildID,
		environment,
	)
	return rows > 0, err
}
