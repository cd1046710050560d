package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

// Report statuses.
const (
	ReportStatusOpen     = "open"
	ReportStatusResolved = "resolved"
)

// Moderation view verbs, carried in component custom IDs as
// "report_action:<verb>:<reportID>".
const (
	reportActionAsk     = "ask"
	reportActionWarn    = "warn"
	reportActionTimeout = "timeout"
	reportActionBan     = "ban"
	reportActionHistory = "history"
	reportActionResolve = "resolve"
)

const customIDReportActionModalPrefix = "report_action_modal"

// reportChannelSlugMaxLen caps the reporter-name fragment of a report
// channel's name.
const reportChannelSlugMaxLen = 24

// Report is a user report against an LFG ad. Each open report gets a
// dedicated channel in the moderation guild.
type Report struct {
	ModelUintID
	ModelUnixTime

	AdID uint `gorm:"index" json:"ad_id"`

	ReporterID   string `gorm:"index" json:"reporter_id"`
	ReporterName string `json:"reporter_name"`
	ReportedID   string `gorm:"index" json:"reported_id"`
	ReportedName string `json:"reported_name"`

	// OriginGuildID is the guild the report button was pressed in.
	OriginGuildID string `json:"origin_guild_id"`

	Description string         `json:"description"`
	EvidenceURL NullableString `json:"evidence_url"`

	// ChannelID is the report channel in the moderation guild. Empty if
	// channel creation failed; the report survives regardless.
	ChannelID string `json:"channel_id"`

	Status     string         `gorm:"index;default:open;check:status IN ('open','resolved')" json:"status"`
	ResolvedBy NullableString `json:"resolved_by"`
	ResolvedAt *int64         `json:"resolved_at"`
}

func (Report) TableName() string {
	return "reports"
}

func reportChannelName(reportID uint, reporterName string) string {
	return fmt.Sprintf(
		"report-%d-%s",
		reportID,
		channelSlug(reporterName, reportChannelSlugMaxLen),
	)
}

func reportTopic(r *Report) string {
	return fmt.Sprintf(
		"Ad report #%d • From guild %s • Ad #%d",
		r.ID,
		r.OriginGuildID,
		r.AdID,
	)
}

func reportEmbed(r *Report, ad *Ad) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Reported user",
			Value:  fmt.Sprintf("%s (%s)", userMention(r.ReportedID), r.ReportedName),
			Inline: true,
		},
		{
			Name:   "Reporter",
			Value:  fmt.Sprintf("%s (%s)", userMention(r.ReporterID), r.ReporterName),
			Inline: true,
		},
		{
			Name:  "Description",
			Value: r.Description,
		},
	}
	if r.EvidenceURL != "" {
		fields = append(
			fields,
			&discordgo.MessageEmbedField{
				Name:  "Evidence",
				Value: string(r.EvidenceURL),
			},
		)
	}
	if ad != nil {
		fields = append(
			fields,
			&discordgo.MessageEmbedField{
				Name:  "Ad",
				Value: fmt.Sprintf("#%d - %s: %s", ad.ID, ad.Game, truncate(ad.Notes, 200)),
			},
		)
	}
	return &discordgo.MessageEmbed{
		Title:  fmt.Sprintf("Ad report #%d", r.ID),
		Color:  0xed4245,
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{Text: reportTopic(r)},
	}
}

// reportModerationComponents is the persistent button view posted in
// report channels.
func reportModerationComponents(reportID uint) []discordgo.MessageComponent {
	actionID := func(verb string) string {
		return fmt.Sprintf("%s:%s:%d", customIDReportActionPrefix, verb, reportID)
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Ask Reporter",
					Style:    discordgo.PrimaryButton,
					CustomID: actionID(reportActionAsk),
				},
				discordgo.Button{
					Label:    "Warn",
					Style:    discordgo.SecondaryButton,
					CustomID: actionID(reportActionWarn),
				},
				discordgo.Button{
					Label:    "Timeout",
					Style:    discordgo.SecondaryButton,
					CustomID: actionID(reportActionTimeout),
				},
				discordgo.Button{
					Label:    "Ban",
					Style:    discordgo.DangerButton,
					CustomID: actionID(reportActionBan),
				},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Past Reports",
					Style:    discordgo.SecondaryButton,
					CustomID: actionID(reportActionHistory),
				},
				discordgo.Button{
					Label:    "Resolve & Close",
					Style:    discordgo.SuccessButton,
					CustomID: actionID(reportActionResolve),
				},
			},
		},
	}
}

func getReport(db DBI, reportID uint) (*Report, error) {
	var report Report
	err := db.DB().Where("id = ?", reportID).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading report: %w", err)
	}
	return &report, nil
}

// pastReports returns every report filed against a user, newest first.
func pastReports(db DBI, reportedID string) ([]Report, error) {
	var reports []Report
	err := db.DB().Where("reported_id = ?", reportedID).
		Order("created_at DESC").Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("error loading past reports: %w", err)
	}
	return reports, nil
}

// isModerator reports whether the interaction's member may use
// moderation surfaces: ManageGuild, ManageChannels, or Administrator
// permission, or being the configured bot owner.
func (m *Matchmaker) isModerator(i *discordgo.InteractionCreate) bool {
	user := interactionUser(i)
	if user != nil && m.config.OwnerUserID != "" && user.ID == m.config.OwnerUserID {
		return true
	}
	if i.Member == nil {
		return false
	}
	perms := i.Member.Permissions
	return perms&discordgo.PermissionManageServer != 0 ||
		perms&discordgo.PermissionManageChannels != 0 ||
		perms&discordgo.PermissionAdministrator != 0
}

// handleReportButton opens the report modal for an ad.
func (m *Matchmaker) handleReportButton(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	adID uint,
) {
	log := m.logger.With(loggerNameKey, "reports")
	user := interactionUser(i)
	cfg := m.RuntimeConfig()

	ad, err := getAd(m.writeDB, adID)
	if err != nil {
		log.ErrorContext(ctx, "error loading ad", tint.Err(err), "ad_id", adID)
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	if ad == nil {
		m.respondEphemeral(ctx, i, "That ad no longer exists.")
		return
	}
	if ad.OwnerID == user.ID {
		m.respondEphemeral(ctx, i, "You can't report your own ad.")
		return
	}

	enforcement, err := activeEnforcement(m.writeDB, user.ID, i.GuildID)
	if err != nil {
		log.ErrorContext(ctx, "error checking enforcement", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	if enforcement != nil {
		m.respondEphemeral(ctx, i, enforcement.enforcementNotice())
		return
	}

	err = m.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: fmt.Sprintf("%s:%d", customIDReportModalPrefix, adID),
				Title:    fmt.Sprintf("Report ad #%d", adID),
				Components: []discordgo.MessageComponent{
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							discordgo.TextInput{
								CustomID:    "description",
								Label:       "What's wrong?",
								Style:       discordgo.TextInputParagraph,
								Required:    true,
								MaxLength:   cfg.ReportDescriptionMaxLen,
								Placeholder: "Briefly describe the problem",
							},
						},
					},
					discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							discordgo.TextInput{
								CustomID:    "evidence",
								Label:       "Evidence link (optional)",
								Style:       discordgo.TextInputShort,
								Required:    false,
								MaxLength:   200,
								Placeholder: "https://...",
							},
						},
					},
				},
			},
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		log.ErrorContext(ctx, "error opening report modal", tint.Err(err))
	}
}

// handleReportModal files the report and materializes its channel in the
// moderation guild. The report row is written and acknowledged before
// any Discord work happens.
func (m *Matchmaker) handleReportModal(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	adID uint,
) {
	log := m.logger.With(loggerNameKey, "reports")
	user := interactionUser(i)
	cfg := m.RuntimeConfig()
	data := i.ModalSubmitData()

	description := strings.TrimSpace(modalInputValue(data, "description"))
	evidence := strings.TrimSpace(modalInputValue(data, "evidence"))
	if description == "" {
		m.respondEphemeral(ctx, i, "A description is required.")
		return
	}
	description = truncate(description, cfg.ReportDescriptionMaxLen)

	ad, err := getAd(m.writeDB, adID)
	if err != nil || ad == nil {
		if err != nil {
			log.ErrorContext(ctx, "error loading ad", tint.Err(err))
		}
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}

	report := &Report{
		AdID:          ad.ID,
		ReporterID:    user.ID,
		ReporterName:  user.Username,
		ReportedID:    ad.OwnerID,
		ReportedName:  ad.OwnerName,
		OriginGuildID: i.GuildID,
		Description:   description,
		EvidenceURL:   NullableString(evidence),
		Status:        ReportStatusOpen,
	}
	if _, err = m.writeDB.Create(report); err != nil {
		log.ErrorContext(ctx, "error creating report", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}

	m.respondEphemeral(
		ctx,
		i,
		fmt.Sprintf(
			"✅ Thanks - report #%d was filed and moderators have been notified.",
			report.ID,
		),
	)

	if err = incrementCounter(m.writeDB, counterReports, 1); err != nil {
		log.WarnContext(ctx, "error incrementing counter", tint.Err(err))
	}

	if m.config.Discord.ReportsGuildID == "" {
		log.WarnContext(
			ctx,
			"no reports guild configured; report has no channel",
			"report_id", report.ID,
		)
		return
	}

	channel, err := m.discord.session.GuildChannelCreateComplex(
		m.config.Discord.ReportsGuildID,
		discordgo.GuildChannelCreateData{
			Name:     reportChannelName(report.ID, report.ReporterName),
			Type:     discordgo.ChannelTypeGuildText,
			Topic:    reportTopic(report),
			ParentID: m.config.Discord.ReportsCategoryID,
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		log.ErrorContext(
			ctx,
			"error creating report channel",
			tint.Err(err),
			"report_id", report.ID,
		)
		return
	}

	if _, err = m.writeDB.Update(report, "channel_id", channel.ID); err != nil {
		log.ErrorContext(ctx, "error saving report channel", tint.Err(err))
	}
	report.ChannelID = channel.ID

	_, err = m.discord.session.ChannelMessageSendComplex(
		channel.ID,
		&discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{reportEmbed(report, ad)},
			Components: reportModerationComponents(report.ID),
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		log.ErrorContext(
			ctx,
			"error posting report embed",
			tint.Err(err),
			"report_id", report.ID,
		)
	}

	log.InfoContext(
		ctx,
		"report filed",
		"report_id", report.ID,
		"ad_id", ad.ID,
		"reporter_id", report.ReporterID,
		"reported_id", report.ReportedID,
		"channel_id", report.ChannelID,
	)
}

// handleReportAction routes the moderation view's buttons.
func (m *Matchmaker) handleReportAction(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	verb string,
	reportID uint,
) {
	log := m.logger.With(loggerNameKey, "moderation")
	cfg := m.RuntimeConfig()

	if !m.isModerator(i) {
		m.respondEphemeral(ctx, i, "You don't have permission to do that.")
		return
	}

	report, err := getReport(m.writeDB, reportID)
	if err != nil {
		log.ErrorContext(ctx, "error loading report", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}
	if report == nil {
		m.respondEphemeral(ctx, i, "That report no longer exists.")
		return
	}

	switch verb {
	case reportActionAsk:
		m.handleAskReporter(ctx, i, report)
	case reportActionWarn, reportActionTimeout, reportActionBan:
		m.openReportActionModal(ctx, i, verb, report)
	case reportActionHistory:
		m.handleReportHistory(ctx, i, report)
	case reportActionResolve:
		m.resolveReport(ctx, i, report)
	default:
		log.WarnContext(ctx, "unknown report action", "verb", verb)
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
	}
}

// handleAskReporter opens the DM relay between the report channel and
// the reporter.
func (m *Matchmaker) handleAskReporter(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	report *Report,
) {
	log := m.logger.With(loggerNameKey, "moderation")
	cfg := m.RuntimeConfig()

	if report.Status == ReportStatusResolved {
		m.respondEphemeral(ctx, i, "This report is already resolved.")
		return
	}
	if report.ChannelID == "" {
		m.respondEphemeral(ctx, i, "This report has no channel to relay into.")
		return
	}

	_, err := openConversation(m.writeDB, report)
	if err != nil {
		log.ErrorContext(ctx, "error opening conversation", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}

	m.respondEphemeral(
		ctx,
		i,
		fmt.Sprintf(
			"Relay open. Messages prefixed with `%s` here go to the "+
				"reporter; their DM replies appear in this channel. "+
				"Send `%s` to stop.",
			strings.TrimRight(cfg.RelayPrefix, " "),
			relayCloseCommand,
		),
	)

	dm := fmt.Sprintf(
		"Moderators reviewing your report #%d would like to ask you some "+
			"questions. Reply to this DM and your messages will be "+
			"forwarded to them.",
		report.ID,
	)
	if err = m.sendDM(ctx, report.ReporterID, dm); err != nil {
		log.WarnContext(
			ctx,
			"could not DM reporter",
			tint.Err(err),
			"report_id", report.ID,
		)
		if report.ChannelID != "" {
			_, _ = m.discord.session.ChannelMessageSend(
				report.ChannelID,
				"⚠️ Couldn't DM the reporter - their DMs may be closed.",
				discordgo.WithContext(ctx),
			)
		}
	}
}

// openReportActionModal shows the reason (and, for timeouts, duration)
// modal for a moderation action.
func (m *Matchmaker) openReportActionModal(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	verb string,
	report *Report,
) {
	log := m.logger.With(loggerNameKey, "moderation")
	cfg := m.RuntimeConfig()

	title := map[string]string{
		reportActionWarn:    fmt.Sprintf("Warn %s", report.ReportedName),
		reportActionTimeout: fmt.Sprintf("Timeout %s", report.ReportedName),
		reportActionBan:     fmt.Sprintf("Ban %s", report.ReportedName),
	}[verb]

	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:  "reason",
					Label:     "Reason",
					Style:     discordgo.TextInputParagraph,
					Required:  true,
					MaxLength: cfg.ReportDescriptionMaxLen,
				},
			},
		},
	}
	if verb == reportActionTimeout {
		components = append(
			components,
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "minutes",
						Label:    "Minutes (0 clears, -1 indefinite)",
						Style:    discordgo.TextInputShort,
						Required: false,
						Placeholder: strconv.Itoa(
							cfg.DefaultTimeoutMinutes,
						),
					},
				},
			},
		)
	}

	err := m.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID: fmt.Sprintf(
					"%s:%s:%d",
					customIDReportActionModalPrefix,
					verb,
					report.ID,
				),
				Title:      title,
				Components: components,
			},
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		log.ErrorContext(ctx, "error opening action modal", tint.Err(err))
	}
}

// handleReportActionModal applies a warn/timeout/ban from the moderation
// view's modal.
func (m *Matchmaker) handleReportActionModal(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	verb string,
	reportID uint,
) {
	log := m.logger.With(loggerNameKey, "moderation")
	cfg := m.RuntimeConfig()

	if !m.isModerator(i) {
		m.respondEphemeral(ctx, i, "You don't have permission to do that.")
		return
	}

	report, err := getReport(m.writeDB, reportID)
	if err != nil || report == nil {
		if err != nil {
			log.ErrorContext(ctx, "error loading report", tint.Err(err))
		}
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}

	moderator := interactionUser(i)
	data := i.ModalSubmitData()
	reason := strings.TrimSpace(modalInputValue(data, "reason"))

	switch verb {
	case reportActionWarn:
		dm := fmt.Sprintf(
			"⚠️ You've received a formal warning from the Matchmaker "+
				"moderators regarding report #%d: %s",
			report.ID,
			reason,
		)
		if err = m.sendDM(ctx, report.ReportedID, dm); err != nil {
			log.WarnContext(ctx, "could not DM warned user", tint.Err(err))
			m.respondEphemeral(
				ctx,
				i,
				"Warning recorded, but the user's DMs are closed.",
			)
			return
		}
		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf("Warned %s.", userMention(report.ReportedID)),
		)

	case reportActionTimeout:
		minutes := cfg.DefaultTimeoutMinutes
		if raw := strings.TrimSpace(modalInputValue(data, "minutes")); raw != "" {
			parsed, parseErr := strconv.Atoi(raw)
			if parseErr != nil {
				m.respondEphemeral(
					ctx,
					i,
					fmt.Sprintf("Invalid minutes value: %q", raw),
				)
				return
			}
			minutes = parsed
		}

		d := time.Duration(minutes) * time.Minute
		if minutes < 0 {
			d = -1
		}
		enforcement, applyErr := applyEnforcement(
			m.writeDB,
			report.ReportedID,
			report.OriginGuildID,
			EnforcementTimeout,
			d,
			reason,
			moderator.ID,
		)
		if applyErr != nil {
			log.ErrorContext(ctx, "error applying timeout", tint.Err(applyErr))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		if enforcement == nil {
			m.respondEphemeral(
				ctx,
				i,
				fmt.Sprintf(
					"Cleared any timeout for %s.",
					userMention(report.ReportedID),
				),
			)
			return
		}

		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf(
				"Timed out %s (%s).",
				userMention(report.ReportedID),
				timeoutSummary(minutes),
			),
		)
		_ = m.sendDM(ctx, report.ReportedID, enforcement.enforcementNotice())

	case reportActionBan:
		enforcement, applyErr := applyEnforcement(
			m.writeDB,
			report.ReportedID,
			guildScopeGlobal,
			EnforcementBan,
			-1,
			reason,
			moderator.ID,
		)
		if applyErr != nil {
			log.ErrorContext(ctx, "error applying ban", tint.Err(applyErr))
			m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
			return
		}
		m.respondEphemeral(
			ctx,
			i,
			fmt.Sprintf("Banned %s from Matchmaker.", userMention(report.ReportedID)),
		)
		_ = m.sendDM(ctx, report.ReportedID, enforcement.enforcementNotice())

	default:
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}

	log.InfoContext(
		ctx,
		"moderation action applied",
		"verb", verb,
		"report_id", report.ID,
		"reported_id", report.ReportedID,
		"moderator_id", moderator.ID,
	)
}

func timeoutSummary(minutes int) string {
	if minutes < 0 {
		return "indefinite"
	}
	return humanDuration(time.Duration(minutes) * time.Minute)
}

// handleReportHistory lists past reports against the reported user.
func (m *Matchmaker) handleReportHistory(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	report *Report,
) {
	log := m.logger.With(loggerNameKey, "moderation")

	reports, err := pastReports(m.writeDB, report.ReportedID)
	if err != nil {
		log.ErrorContext(ctx, "error loading past reports", tint.Err(err))
		m.respondEphemeral(ctx, i, m.RuntimeConfig().DiscordErrorMessage)
		return
	}

	var b strings.Builder
	fmt.Fprintf(
		&b,
		"**%d report(s) against %s:**\n",
		len(reports),
		report.ReportedName,
	)
	for idx, r := range reports {
		if idx >= 10 {
			fmt.Fprintf(&b, "… and %d more\n", len(reports)-idx)
			break
		}
		fmt.Fprintf(
			&b,
			"• #%d (%s, <t:%d:R>): %s\n",
			r.ID,
			r.Status,
			r.CreatedAt/1000,
			truncate(r.Description, 80),
		)
	}
	m.respondEphemeral(ctx, i, b.String())
}

// resolveReport marks a report resolved, closes its conversation, DMs
// the reporter, and deletes the report channel. Idempotent: resolving a
// resolved report is a no-op. Channel deletion failures never roll back
// the database resolution.
func (m *Matchmaker) resolveReport(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	report *Report,
) {
	log := m.logger.With(loggerNameKey, "moderation")
	cfg := m.RuntimeConfig()

	if report.Status == ReportStatusResolved {
		m.respondEphemeral(ctx, i, "This report is already resolved.")
		return
	}

	moderator := interactionUser(i)
	now := time.Now().UnixMilli()
	_, err := m.writeDB.UpdatesWhere(
		&Report{},
		map[string]any{
			"status":      ReportStatusResolved,
			"resolved_by": moderator.ID,
			"resolved_at": now,
		},
		"id = ?",
		report.ID,
	)
	if err != nil {
		log.ErrorContext(ctx, "error resolving report", tint.Err(err))
		m.respondEphemeral(ctx, i, cfg.DiscordErrorMessage)
		return
	}

	if _, err = closeConversation(m.writeDB, report.ID); err != nil {
		log.WarnContext(ctx, "error closing conversation", tint.Err(err))
	}

	m.respondEphemeral(
		ctx,
		i,
		fmt.Sprintf(
			"Report #%d resolved. This channel will be deleted.",
			report.ID,
		),
	)

	dm := fmt.Sprintf(
		"Your report #%d has been reviewed and resolved by the "+
			"moderators. Thanks for helping keep Matchmaker safe.",
		report.ID,
	)
	if err = m.sendDM(ctx, report.ReporterID, dm); err != nil {
		log.WarnContext(ctx, "could not DM reporter", tint.Err(err))
	}

	if report.ChannelID != "" {
		if _, err = m.discord.session.ChannelDelete(
			report.ChannelID,
			discordgo.WithContext(ctx),
		); err != nil {
			log.WarnContext(
				ctx,
				"could not delete report channel",
				tint.Err(err),
				"report_id", report.ID,
				"channel_id", report.ChannelID,
			)
		}
	}

	log.InfoContext(
		ctx,
		"report resolved",
		"report_id", report.ID,
		"moderator_id", moderator.ID,
	)
}
