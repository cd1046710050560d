package matchmaker

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

// scrubbedName replaces the reporter's stored name on reports that must
// survive a privacy deletion for moderation history.
const scrubbedName = "deleted"

// handleDeleteMyData asks for confirmation before wiping a user's data.
func (m *Matchmaker) handleDeleteMyData(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	err := m.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "This removes your ads, connections, cooldowns, " +
					"and profile from Matchmaker. Reports you filed are kept " +
					"for moderation, with your name removed. This can't be " +
					"undone.",
				Flags: discordgo.MessageFlagsEphemeral,
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							discordgo.Button{
								Label:    "Delete my data",
								Style:    discordgo.DangerButton,
								CustomID: customIDPrivacyConfirm,
							},
							discordgo.Button{
								Label:    "Cancel",
								Style:    discordgo.SecondaryButton,
								CustomID: customIDPrivacyCancel,
							},
						},
					},
				},
			},
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		m.logger.ErrorContext(
			ctx,
			"error sending confirmation",
			tint.Err(err),
		)
	}
}

// handlePrivacyConfirm performs the deletion and replaces the
// confirmation message with a summary.
func (m *Matchmaker) handlePrivacyConfirm(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	log := m.logger.With(loggerNameKey, "privacy")
	user := interactionUser(i)

	deleted, err := m.deleteUserData(ctx, user.ID)
	if err != nil {
		log.ErrorContext(ctx, "error deleting user data", tint.Err(err))
		m.updateComponentMessage(ctx, i, m.RuntimeConfig().DiscordErrorMessage)
		return
	}

	var parts []string
	for table, rows := range deleted {
		if rows > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", table, rows))
		}
	}
	summary := "Your data has been deleted."
	if len(parts) > 0 {
		summary = fmt.Sprintf(
			"Your data has been deleted (%s).",
			strings.Join(parts, ", "),
		)
	}
	m.updateComponentMessage(ctx, i, summary)
	log.InfoContext(ctx, "user data deleted", "user_id", user.ID)
}

func (m *Matchmaker) handlePrivacyCancel(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	m.updateComponentMessage(ctx, i, "Cancelled - nothing was deleted.")
}

// updateComponentMessage replaces the message a component interaction
// came from, dropping its buttons.
func (m *Matchmaker) updateComponentMessage(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	content string,
) {
	err := m.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    content,
				Components: []discordgo.MessageComponent{},
			},
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		m.logger.ErrorContext(ctx, "error updating message", tint.Err(err))
	}
}

// deleteUserData removes a user's rows in one transaction and returns
// per-table deletion counts. The user's ads are marked removed first so
// their broadcast copies can be disabled afterwards.
func (m *Matchmaker) deleteUserData(
	ctx context.Context,
	userID string,
) (map[string]int64, error) {
	counts := map[string]int64{}

	var ads []Ad
	if err := m.db.WithContext(ctx).Where(
		"owner_id = ? AND status <> ?",
		userID,
		AdStatusRemoved,
	).Find(&ads).Error; err != nil {
		return nil, fmt.Errorf("error loading user ads: %w", err)
	}

	err := m.writeDB.Transaction(
		func(tx *gorm.DB) error {
			rv := tx.Model(&Ad{}).Where("owner_id = ?", userID).Updates(
				map[string]any{
					"status":          AdStatusRemoved,
					"expired_handled": true,
				},
			)
			if rv.Error != nil {
				return rv.Error
			}
			counts["ads"] = rv.RowsAffected

			rv = tx.Where("user_id = ?", userID).Delete(&AdClick{})
			if rv.Error != nil {
				return rv.Error
			}
			counts["connections"] = rv.RowsAffected

			rv = tx.Model(&Report{}).Where("reporter_id = ?", userID).Update(
				"reporter_name",
				scrubbedName,
			)
			if rv.Error != nil {
				return rv.Error
			}
			counts["reports_scrubbed"] = rv.RowsAffected

			rv = tx.Where("user_id = ?", userID).Delete(&PostCooldown{})
			if rv.Error != nil {
				return rv.Error
			}
			counts["cooldowns"] = rv.RowsAffected

			rv = tx.Where("user_id = ?", userID).Delete(&WhitelistEntry{})
			if rv.Error != nil {
				return rv.Error
			}
			counts["whitelist"] = rv.RowsAffected

			rv = tx.Where("id = ?", userID).Delete(&User{})
			if rv.Error != nil {
				return rv.Error
			}
			counts["profile"] = rv.RowsAffected

			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error deleting user data: %w", err)
	}

	m.writeDB.ForgetUser(userID)

	// best-effort: pull the buttons off any still-visible copies
	for idx := range ads {
		m.disableAdPosts(ctx, &ads[idx])
	}
	return counts, nil
}
