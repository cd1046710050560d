package matchmaker

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostCooldown tracks the earliest time a user may post their next ad.
type PostCooldown struct {
	UserID string `gorm:"primaryKey" json:"user_id"`

	// NextOkAt is the unix-milli timestamp the cooldown lapses.
	NextOkAt int64 `json:"next_ok_at"`

	ModelUnixTime
}

func (PostCooldown) TableName() string {
	return "user_post_cooldowns"
}

// checkPostCooldown reports whether the user is still cooling down, and
// if so, when the cooldown lapses.
func checkPostCooldown(db DBI, userID string, now time.Time) (
	coolingDown bool,
	until time.Time,
	err error,
) {
	var cooldown PostCooldown
	err = db.DB().Where("user_id = ?", userID).First(&cooldown).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, fmt.Errorf(
			"error loading post cooldown: %w",
			err,
		)
	}
	if cooldown.NextOkAt <= now.UnixMilli() {
		return false, time.Time{}, nil
	}
	return true, time.UnixMilli(cooldown.NextOkAt), nil
}

// setPostCooldown advances the user's cooldown to now+d.
func setPostCooldown(db DBI, userID string, now time.Time, d time.Duration) error {
	cooldown := &PostCooldown{
		UserID:   userID,
		NextOkAt: now.Add(d).UnixMilli(),
	}
	return db.Transaction(
		func(tx *gorm.DB) error {
			return tx.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "user_id"}},
					DoUpdates: clause.AssignmentColumns(
						[]string{"next_ok_at", "updated_at"},
					),
				},
			).Create(cooldown).Error
		},
	)
}
