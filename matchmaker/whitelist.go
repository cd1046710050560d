package matchmaker

import (
	"fmt"
)

// WhitelistEntry marks a trusted user who bypasses the post cooldown and
// the per-user active ad limit. Managed by the bot owner.
type WhitelistEntry struct {
	UserID  string `gorm:"primaryKey" json:"user_id"`
	AddedBy string `json:"added_by"`

	ModelUnixTime
}

func (WhitelistEntry) TableName() string {
	return "whitelist"
}

func isWhitelisted(db DBI, userID string) (bool, error) {
	var count int64
	err := db.DB().Model(&WhitelistEntry{}).Where(
		"user_id = ?",
		userID,
	).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("error checking whitelist: %w", err)
	}
	return count > 0, nil
}

func addToWhitelist(db DBI, userID string, addedBy string) (bool, error) {
	whitelisted, err := isWhitelisted(db, userID)
	if err != nil {
		return false, err
	}
	if whitelisted {
		return false, nil
	}
	_, err = db.Create(&WhitelistEntry{UserID: userID, AddedBy: addedBy})
	if err != nil {
		return false, fmt.Errorf("error adding whitelist entry: %w", err)
	}
	return true, nil
}

func removeFromWhitelist(db DBI, userID string) (bool, error) {
	rows, err := db.Delete(&WhitelistEntry{}, "user_id = ?", userID)
	if err != nil {
		return false, fmt.Errorf("error removing whitelist entry: %w", err)
	}
	return rows > 0, nil
}

func listWhitelist(db DBI) ([]WhitelistEntry, error) {
	var entries []WhitelistEntry
	err := db.DB().Order("created_at").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("error listing whitelist: %w", err)
	}
	return entries, nil
}
