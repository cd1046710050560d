package matchmaker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Enforcement kinds. A ban is indefinite and bot-wide by convention;
// a timeout is usually guild-scoped and expiring.
const (
	EnforcementTimeout = "timeout"
	EnforcementBan     = "ban"
)

// guildScopeGlobal marks an enforcement that applies in every guild.
const guildScopeGlobal = ""

// UserTimeout is a moderation enforcement against a user: a temporary
// or indefinite timeout, or a ban. One row per (user, guild scope);
// re-applying replaces the previous enforcement. A nil ExpiresAt means
// indefinite; expired rows are removed when read.
type UserTimeout struct {
	ModelUintID
	ModelUnixTime

	UserID  string `gorm:"uniqueIndex:idx_user_timeouts_user_guild;index" json:"user_id"`
	GuildID string `gorm:"uniqueIndex:idx_user_timeouts_user_guild" json:"guild_id"`

	Kind string `gorm:"check:kind IN ('timeout','ban')" json:"kind"`

	// ExpiresAt is the unix-milli expiry; nil means indefinite.
	ExpiresAt *int64 `json:"expires_at"`

	Reason    string `json:"reason"`
	CreatedBy string `json:"created_by"`
}

func (UserTimeout) TableName() string {
	return "user_timeouts"
}

func (t UserTimeout) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("user_id", t.UserID),
		slog.String("guild_id", t.GuildID),
		slog.String("kind", t.Kind),
		slog.String("reason", t.Reason),
		slog.String("created_by", t.CreatedBy),
	}
	if t.ExpiresAt != nil {
		attrs = append(
			attrs,
			slog.Time("expires_at", time.UnixMilli(*t.ExpiresAt)),
		)
	}
	return slog.GroupValue(attrs...)
}

// expired reports whether the enforcement has lapsed.
func (t UserTimeout) expired(now time.Time) bool {
	return t.ExpiresAt != nil && *t.ExpiresAt <= now.UnixMilli()
}

// applyEnforcement upserts an enforcement for (userID, guildID). A zero
// duration clears any existing enforcement; a negative duration means
// indefinite. Pass guildScopeGlobal as guildID for a bot-wide scope.
func applyEnforcement(
	db DBI,
	userID string,
	guildID string,
	kind string,
	d time.Duration,
	reason string,
	createdBy string,
) (*UserTimeout, error) {
	if userID == "" {
		return nil, errors.New("user ID required")
	}
	if kind != EnforcementTimeout && kind != EnforcementBan {
		return nil, fmt.Errorf("unknown enforcement kind: %s", kind)
	}

	if d == 0 {
		_, err := clearEnforcement(db, userID, guildID)
		return nil, err
	}

	enforcement := &UserTimeout{
		UserID:    userID,
		GuildID:   guildID,
		Kind:      kind,
		Reason:    reason,
		CreatedBy: createdBy,
	}
	if d > 0 {
		expiresAt := time.Now().Add(d).UnixMilli()
		enforcement.ExpiresAt = &expiresAt
	}

	err := db.Transaction(
		func(tx *gorm.DB) error {
			return tx.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{
						{Name: "user_id"},
						{Name: "guild_id"},
					},
					DoUpdates: clause.AssignmentColumns(
						[]string{
							"kind",
							"expires_at",
							"reason",
							"created_by",
							"updated_at",
						},
					),
				},
			).Create(enforcement).Error
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error applying enforcement: %w", err)
	}
	return enforcement, nil
}

// clearEnforcement removes the enforcement for (userID, guildID),
// reporting whether a row existed.
func clearEnforcement(db DBI, userID string, guildID string) (bool, error) {
	rows, err := db.Delete(
		&UserTimeout{},
		"user_id = ? AND guild_id = ?",
		userID,
		guildID,
	)
	if err != nil {
		return false, fmt.Errorf("error clearing enforcement: %w", err)
	}
	return rows > 0, nil
}

// activeEnforcement returns the enforcement in effect for a user in the
// given guild, if any. Bot-wide rows apply everywhere; bans take
// precedence over timeouts. Expired rows are deleted as they're seen.
func activeEnforcement(
	db DBI,
	userID string,
	guildID string,
) (*UserTimeout, error) {
	var rows []UserTimeout
	q := db.DB().Where("user_id = ?", userID)
	if guildID == guildScopeGlobal {
		q = q.Where("guild_id = ?", guildScopeGlobal)
	} else {
		q = q.Where(
			"guild_id = ? OR guild_id = ?",
			guildID,
			guildScopeGlobal,
		)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error loading enforcements: %w", err)
	}

	now := time.Now()
	var active *UserTimeout
	for i := range rows {
		row := rows[i]
		if row.expired(now) {
			// self-clearing: lapsed rows are removed on read
			if _, err := db.Delete(&UserTimeout{}, "id = ?", row.ID); err != nil {
				return nil, fmt.Errorf(
					"error deleting expired enforcement: %w",
					err,
				)
			}
			continue
		}
		if active == nil || (row.Kind == EnforcementBan && active.Kind != EnforcementBan) {
			active = &row
		}
	}
	return active, nil
}

// enforcementNotice renders the user-facing explanation of an active
// enforcement.
func (t UserTimeout) enforcementNotice() string {
	reason := t.Reason
	if reason == "" {
		reason = "no reason given"
	}
	if t.Kind == EnforcementBan {
		return fmt.Sprintf(
			"You have been banned from using Matchmaker (%s).",
			reason,
		)
	}
	if t.ExpiresAt == nil {
		return fmt.Sprintf(
			"You are timed out from Matchmaker indefinitely (%s).",
			reason,
		)
	}
	return fmt.Sprintf(
		"You are timed out from Matchmaker until <t:%d:f> (%s).",
		*t.ExpiresAt/1000,
		reason,
	)
}
