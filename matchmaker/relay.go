package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// relayCloseCommand closes an open relay from the report channel side.
const relayCloseCommand = "!close"

// ReportConversation is the relay bridge between a report's channel and
// the reporter's DMs. At most one per report; reopening an existing
// conversation just flips it back open.
type ReportConversation struct {
	ModelUintID
	ModelUnixTime

	ReportID   uint   `gorm:"uniqueIndex" json:"report_id"`
	ReporterID string `gorm:"index" json:"reporter_id"`
	ChannelID  string `gorm:"index" json:"channel_id"`

	Open bool `gorm:"default:true" json:"open"`
}

func (ReportConversation) TableName() string {
	return "report_conversations"
}

// openConversation creates (or reopens) the relay for a report.
func openConversation(db DBI, report *Report) (*ReportConversation, error) {
	conversation := &ReportConversation{
		ReportID:   report.ID,
		ReporterID: report.ReporterID,
		ChannelID:  report.ChannelID,
		Open:       true,
	}
	err := db.Transaction(
		func(tx *gorm.DB) error {
			return tx.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "report_id"}},
					DoUpdates: clause.AssignmentColumns(
						[]string{"open", "channel_id", "updated_at"},
					),
				},
			).Create(conversation).Error
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error opening conversation: %w", err)
	}
	return conversation, nil
}

// closeConversation closes the relay for a report, reporting whether an
// open conversation existed.
func closeConversation(db DBI, reportID uint) (bool, error) {
	rows, err := db.UpdatesWhere(
		&ReportConversation{},
		map[string]any{"open": false},
		"report_id = ? AND open = ?",
		reportID,
		true,
	)
	if err != nil {
		return false, fmt.Errorf("error closing conversation: %w", err)
	}
	return rows > 0, nil
}

// openConversationByReporter finds the reporter's open relay, if any.
// With multiple open conversations, the most recent wins.
func openConversationByReporter(db DBI, reporterID string) (
	*ReportConversation,
	error,
) {
	var conversation ReportConversation
	err := db.DB().Where(
		"reporter_id = ? AND open = ?",
		reporterID,
		true,
	).Order("updated_at DESC").First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding conversation: %w", err)
	}
	return &conversation, nil
}

// openConversationByChannel finds the open relay bound to a report
// channel, if any.
func openConversationByChannel(db DBI, channelID string) (
	*ReportConversation,
	error,
) {
	var conversation ReportConversation
	err := db.DB().Where(
		"channel_id = ? AND open = ?",
		channelID,
		true,
	).First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding conversation: %w", err)
	}
	return &conversation, nil
}

// handleDiscordMessage bridges the DM relay: reporter DMs are mirrored
// into the report channel, and prefixed moderator messages in the report
// channel are mirrored to the reporter's DM.
func (m *Matchmaker) handleDiscordMessage(
	s *discordgo.Session,
	mc *discordgo.MessageCreate,
) {
	if mc.Author == nil || mc.Author.Bot {
		return
	}
	if s != nil && s.State != nil && s.State.User != nil &&
		mc.Author.ID == s.State.User.ID {
		return
	}
	if m.Paused() {
		return
	}

	ctx := WithLogger(context.Background(), m.logger)
	if mc.GuildID == "" {
		m.relayReporterDM(ctx, mc)
		return
	}
	if mc.GuildID == m.config.Discord.ReportsGuildID {
		m.relayModeratorMessage(ctx, mc)
	}
}

// relayReporterDM mirrors a reporter's DM into their open report channel.
func (m *Matchmaker) relayReporterDM(
	ctx context.Context,
	mc *discordgo.MessageCreate,
) {
	log := m.logger.With(loggerNameKey, "relay")

	conversation, err := openConversationByReporter(m.writeDB, mc.Author.ID)
	if err != nil {
		log.ErrorContext(ctx, "error finding conversation", tint.Err(err))
		return
	}
	if conversation == nil || conversation.ChannelID == "" {
		return
	}

	_, err = m.discord.session.ChannelMessageSend(
		conversation.ChannelID,
		fmt.Sprintf("**%s:** %s", mc.Author.Username, mc.Content),
		discordgo.WithContext(ctx),
	)
	if err != nil {
		log.WarnContext(
			ctx,
			"could not mirror reporter DM",
			tint.Err(err),
			"report_id", conversation.ReportID,
		)
	}
}

// relayModeratorMessage forwards a prefixed report-channel message to
// the reporter's DM, or closes the relay on the close command.
func (m *Matchmaker) relayModeratorMessage(
	ctx context.Context,
	mc *discordgo.MessageCreate,
) {
	log := m.logger.With(loggerNameKey, "relay")
	cfg := m.RuntimeConfig()

	conversation, err := openConversationByChannel(m.writeDB, mc.ChannelID)
	if err != nil {
		log.ErrorContext(ctx, "error finding conversation", tint.Err(err))
		return
	}
	if conversation == nil {
		return
	}

	content := mc.Content
	if strings.TrimSpace(content) == relayCloseCommand {
		if _, err = closeConversation(m.writeDB, conversation.ReportID); err != nil {
			log.ErrorContext(ctx, "error closing conversation", tint.Err(err))
			return
		}
		_, _ = m.discord.session.ChannelMessageSend(
			mc.ChannelID,
			"Relay closed.",
			discordgo.WithContext(ctx),
		)
		return
	}

	if !strings.HasPrefix(content, cfg.RelayPrefix) {
		return
	}
	forwarded := strings.TrimSpace(strings.TrimPrefix(content, cfg.RelayPrefix))
	if forwarded == "" {
		return
	}

	err = m.sendDM(
		ctx,
		conversation.ReporterID,
		fmt.Sprintf("**Moderator:** %s", forwarded),
	)
	if err != nil {
		log.WarnContext(
			ctx,
			"could not forward to reporter",
			tint.Err(err),
			"report_id", conversation.ReportID,
		)
		_, _ = m.discord.session.ChannelMessageSend(
			mc.ChannelID,
			"⚠️ Couldn't deliver that - the reporter's DMs may be closed.",
			discordgo.WithContext(ctx),
		)
	}
}
