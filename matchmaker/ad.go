package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ad statuses.
const (
	AdStatusActive  = "active"
	AdStatusExpired = "expired"
	AdStatusRemoved = "removed"
)

// Component custom ID prefixes. IDs are "<prefix>:<arg>[:<arg>...]".
const (
	customIDConnectPrefix      = "ad_connect"
	customIDReportPrefix       = "ad_report"
	customIDReportModalPrefix  = "report_modal"
	customIDReportActionPrefix = "report_action"
	customIDPrivacyConfirm     = "privacy_confirm"
	customIDPrivacyCancel      = "privacy_cancel"
)

// Ad is a "looking for group" post. The origin message lives in the
// owner's guild; broadcast copies are tracked as AdPost rows.
type Ad struct {
	ModelUintID
	ModelUnixTime

	OwnerID   string `gorm:"index" json:"owner_id"`
	OwnerName string `json:"owner_name"`

	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`

	Game  string `json:"game"`
	Notes string `json:"notes"`

	// ExpiresAt is the unix-milli timestamp the ad lapses.
	ExpiresAt int64 `gorm:"index" json:"expires_at"`

	// NotifyOnExpire DMs the owner when the ad expires.
	NotifyOnExpire bool `json:"notify_on_expire"`

	// ExpiredHandled is set once the expiry sweeper has disabled the
	// ad's broadcast copies.
	ExpiredHandled bool `gorm:"default:false" json:"expired_handled"`

	ClickCount int `gorm:"default:0" json:"click_count"`

	Status string `gorm:"index;default:active;check:status IN ('active','expired','removed')" json:"status"`
}

func (Ad) TableName() string {
	return "lfg_ads"
}

// AdPost is one broadcast copy of an ad.
type AdPost struct {
	ModelUintID
	ModelUnixTime

	AdID      uint   `gorm:"index" json:"ad_id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

func (AdPost) TableName() string {
	return "lfg_posts"
}

// AdClick records a Connect press, once per user per ad.
type AdClick struct {
	ModelUintID
	ModelUnixTime

	AdID   uint   `gorm:"uniqueIndex:idx_lfg_ad_clicks_ad_user" json:"ad_id"`
	UserID string `gorm:"uniqueIndex:idx_lfg_ad_clicks_ad_user" json:"user_id"`
}

func (AdClick) TableName() string {
	return "lfg_ad_clicks"
}

func NewAd(
	owner *User,
	guildID string,
	channelID string,
	game string,
	notes string,
	ttl time.Duration,
	notifyOnExpire bool,
) *Ad {
	return &Ad{
		OwnerID:        owner.ID,
		OwnerName:      owner.DisplayName(),
		GuildID:        guildID,
		ChannelID:      channelID,
		Game:           game,
		Notes:          notes,
		ExpiresAt:      time.Now().Add(ttl).UnixMilli(),
		NotifyOnExpire: notifyOnExpire,
		Status:         AdStatusActive,
	}
}

func getAd(db DBI, adID uint) (*Ad, error) {
	var ad Ad
	err := db.DB().Where("id = ?", adID).First(&ad).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading ad: %w", err)
	}
	return &ad, nil
}

// active reports whether the ad can still be connected to or reported.
func (a Ad) active(now time.Time) bool {
	return a.Status == AdStatusActive && a.ExpiresAt > now.UnixMilli()
}

// activeAdCount counts a user's currently active ads.
func activeAdCount(db DBI, ownerID string, now time.Time) (int64, error) {
	var count int64
	err := db.DB().Model(&Ad{}).Where(
		"owner_id = ? AND status = ? AND expires_at > ?",
		ownerID,
		AdStatusActive,
		now.UnixMilli(),
	).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting active ads: %w", err)
	}
	return count, nil
}

// recordAdClick inserts a click row if the user hasn't connected to this
// ad before, bumping the ad's click count on first press. Reports
// whether the click was new.
func recordAdClick(db DBI, adID uint, userID string) (bool, error) {
	created := false
	err := db.Transaction(
		func(tx *gorm.DB) error {
			click := &AdClick{AdID: adID, UserID: userID}
			rv := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(click)
			if rv.Error != nil {
				return rv.Error
			}
			if rv.RowsAffected == 0 {
				return nil
			}
			created = true
			return tx.Model(&Ad{}).Where("id = ?", adID).Update(
				"click_count",
				gorm.Expr("click_count + ?", 1),
			).Error
		},
	)
	if err != nil {
		return false, fmt.Errorf("error recording ad click: %w", err)
	}
	return created, nil
}

// adEmbed renders an ad as the embed used for both the origin post and
// broadcast copies.
func adEmbed(ad *Ad) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("LFG: %s", ad.Game),
		Description: ad.Notes,
		Color:       0x5865f2,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Posted by",
				Value:  userMention(ad.OwnerID),
				Inline: true,
			},
			{
				Name:   "Expires",
				Value:  fmt.Sprintf("<t:%d:R>", ad.ExpiresAt/1000),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Ad #%d", ad.ID),
		},
	}
}

// adComponents returns the Connect/Report button row for an ad.
func adComponents(adID uint, disabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Connect",
					Style:    discordgo.SuccessButton,
					CustomID: fmt.Sprintf("%s:%d", customIDConnectPrefix, adID),
					Disabled: disabled,
				},
				discordgo.Button{
					Label:    "Report",
					Style:    discordgo.DangerButton,
					CustomID: fmt.Sprintf("%s:%d", customIDReportPrefix, adID),
					Disabled: disabled,
				},
			},
		},
	}
}

// parseUintID parses the numeric argument of a component custom ID.
func parseUintID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q: %w", s, err)
	}
	return uint(id), nil
}

// expireDueAds marks lapsed ads expired, disables the buttons on their
// broadcast copies, and notifies owners who asked for it. Returns the
// number of ads handled.
func (m *Matchmaker) expireDueAds(ctx context.Context) (int, error) {
	log := m.logger.With(loggerNameKey, "ad_expiry")
	now := time.Now().UnixMilli()

	var due []Ad
	err := m.db.WithContext(ctx).Where(
		"status = ? AND expires_at <= ? AND expired_handled = ?",
		AdStatusActive,
		now,
		false,
	).Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("error loading due ads: %w", err)
	}

	handled := 0
	for i := range due {
		ad := due[i]
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}

		if _, err = m.writeDB.UpdatesWhere(
			&Ad{},
			map[string]any{
				"status":          AdStatusExpired,
				"expired_handled": true,
			},
			"id = ?",
			ad.ID,
		); err != nil {
			log.ErrorContext(ctx, "error expiring ad", tint.Err(err))
			continue
		}

		m.disableAdPosts(ctx, &ad)

		if ad.NotifyOnExpire {
			msg := fmt.Sprintf(
				"Your LFG ad for **%s** (ad #%d) has expired. "+
					"It received %d connection(s).",
				ad.Game,
				ad.ID,
				ad.ClickCount,
			)
			if err = m.sendDM(ctx, ad.OwnerID, msg); err != nil {
				log.WarnContext(
					ctx,
					"could not notify owner of expiry",
					tint.Err(err),
					"ad_id", ad.ID,
				)
			}
		}
		handled++
		log.InfoContext(ctx, "expired ad", adLogAttrs(ad)...)
	}
	return handled, nil
}

// disableAdPosts edits every broadcast copy of an ad to disable its
// buttons. Best-effort: failures are logged, not returned.
func (m *Matchmaker) disableAdPosts(ctx context.Context, ad *Ad) {
	log := m.logger.With(loggerNameKey, "ad_expiry")

	var posts []AdPost
	if err := m.db.Where("ad_id = ?", ad.ID).Find(&posts).Error; err != nil {
		log.ErrorContext(ctx, "error loading ad posts", tint.Err(err))
		return
	}

	components := adComponents(ad.ID, true)
	for _, post := range posts {
		_, err := m.discord.session.ChannelMessageEditComplex(
			&discordgo.MessageEdit{
				Channel:    post.ChannelID,
				ID:         post.MessageID,
				Components: &components,
			},
			discordgo.WithContext(ctx),
		)
		if err != nil {
			log.WarnContext(
				ctx,
				"could not disable broadcast post",
				tint.Err(err),
				"ad_id", ad.ID,
				"channel_id", post.ChannelID,
				"message_id", post.MessageID,
			)
		}
	}
}
