package matchmaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Slash command names.
const (
	commandLFG              = "lfg"
	commandLFGChannel       = "lfg-channel"
	commandLFGTimeout       = "lfg-timeout"
	commandLFGTimeoutStatus = "lfg-timeout-status"
	commandWhitelist        = "whitelist"
	commandAllowlist        = "allowlist"
	commandDeleteMyData     = "delete-my-data"
	commandStatus           = "status"
)

// DiscordSessionHandler is the slice of *discordgo.Session the bot uses,
// as an interface so tests can substitute a stub.
type DiscordSessionHandler interface {
	Open() error
	Close() error
	AddHandler(handler any) func()

	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)

	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error
	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageSend(
		channelID string,
		content string,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
	ChannelMessageSendComplex(
		channelID string,
		data *discordgo.MessageSend,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
	ChannelMessageEditComplex(
		m *discordgo.MessageEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	UserChannelCreate(
		recipientID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)
	GuildChannelCreateComplex(
		guildID string,
		data discordgo.GuildChannelCreateData,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)
	ChannelDelete(
		channelID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)
	GuildLeave(guildID string, options ...discordgo.RequestOption) error

	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
	HeartbeatLatency() time.Duration
	SetIdentify(identify discordgo.Identify)
	SetLogLevel(level int)
}

// DiscordSession is the production DiscordSessionHandler backed by a
// real discordgo session.
type DiscordSession struct {
	*discordgo.Session
}

func (d DiscordSession) SetIdentify(identify discordgo.Identify) {
	d.Session.Identify = identify
}

func (d DiscordSession) SetLogLevel(level int) {
	d.Session.LogLevel = level
}

// Discord owns the gateway session and Discord-side bookkeeping.
type Discord struct {
	config  *DiscordConfig
	session DiscordSessionHandler
	logger  *slog.Logger

	mm *Matchmaker

	connects    atomic.Int64
	disconnects atomic.Int64
}

func newDiscord(cfg *Config, logHandler slog.Handler) (*Discord, error) {
	d := &Discord{
		config: &cfg.Discord,
		logger: slog.New(logHandler).With(loggerNameKey, "discord"),
	}
	session, err := newSession(cfg, logHandler)
	if err != nil {
		return nil, err
	}
	d.session = session
	return d, nil
}

func newSession(cfg *Config, logHandler slog.Handler) (
	DiscordSessionHandler,
	error,
) {
	session, err := discordgo.New(fmt.Sprintf("Bot %s", cfg.Discord.Token))
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	session.Identify.Intents = cfg.Discord.GatewayIntents
	session.StateEnabled = true

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		logHandler,
	)
	handler := DiscordSession{Session: session}
	handler.SetLogLevel(
		discordgoLogLevel(cfg.Discord.DiscordGoLogLevel.Level()),
	)
	return handler, nil
}

// discordgoLogLevel maps a slog level to discordgo's int levels.
func discordgoLogLevel(level slog.Level) int {
	switch {
	case level <= slog.LevelDebug:
		return discordgo.LogDebug
	case level <= slog.LevelInfo:
		return discordgo.LogInformational
	case level <= slog.LevelWarn:
		return discordgo.LogWarning
	default:
		return discordgo.LogError
	}
}

var manageGuildPermission int64 = discordgo.PermissionManageServer

// matchmakerCommands returns the application command set registered at
// startup.
func matchmakerCommands(cfg RuntimeConfig) []*discordgo.ApplicationCommand {
	maxGameLen := 100
	minHours := float64(1)
	maxHours := float64(24 * 7)
	minTimeoutMinutes := float64(-1)

	return []*discordgo.ApplicationCommand{
		{
			Name:        commandLFG,
			Description: "Looking for group",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "post",
					Description: "Post an LFG ad to every connected server",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "game",
							Description: "The game you want to play",
							Required:    true,
							MaxLength:   maxGameLen,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "notes",
							Description: "Details: platform, region, skill, vibe",
							Required:    true,
							MaxLength:   500,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "hours",
							Description: "How long the ad stays up (default 24)",
							MinValue:    &minHours,
							MaxValue:    maxHours,
						},
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "notify",
							Description: "DM me when the ad expires",
						},
					},
				},
			},
		},
		{
			Name:                     commandLFGChannel,
			Description:              "Configure this server's LFG broadcast channel",
			DefaultMemberPermissions: &manageGuildPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Set the channel LFG ads are posted to",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionChannel,
							Name:        "channel",
							Description: "The broadcast channel",
							Required:    true,
							ChannelTypes: []discordgo.ChannelType{
								discordgo.ChannelTypeGuildText,
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "show",
					Description: "Show the configured LFG channel",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "clear",
					Description: "Stop receiving LFG broadcasts",
				},
			},
		},
		{
			Name:                     commandLFGTimeout,
			Description:              "Time a user out from Matchmaker",
			DefaultMemberPermissions: &manageGuildPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user to time out",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "Duration in minutes (0 clears, -1 is indefinite)",
					Required:    true,
					MinValue:    &minTimeoutMinutes,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Why",
					MaxLength:   cfg.ReportDescriptionMaxLen,
				},
			},
		},
		{
			Name:                     commandLFGTimeoutStatus,
			Description:              "Check a user's Matchmaker timeout status",
			DefaultMemberPermissions: &manageGuildPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user to check",
					Required:    true,
				},
			},
		},
		{
			Name:        commandWhitelist,
			Description: "Manage trusted users (owner only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Whitelist a user",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionUser,
							Name:        "user",
							Description: "The user to whitelist",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a user from the whitelist",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionUser,
							Name:        "user",
							Description: "The user to remove",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "view",
					Description: "View the whitelist",
				},
			},
		},
		{
			Name:                     commandAllowlist,
			Description:              "Manage the staging guild allowlist",
			DefaultMemberPermissions: &manageGuildPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Allow a guild in this environment",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "guild_id",
							Description: "Guild ID (defaults to this guild)",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a guild from the allowlist",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "guild_id",
							Description: "Guild ID (defaults to this guild)",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List allowed guilds",
				},
			},
		},
		{
			Name:        commandDeleteMyData,
			Description: "Delete your data from Matchmaker",
		},
		{
			Name:        commandStatus,
			Description: "Bot status",
		},
	}
}

// registerCommands bulk-overwrites the bot's application commands,
// scoped to a single guild when DiscordConfig.GuildID is set.
func (d *Discord) registerCommands(ctx context.Context, cfg RuntimeConfig) error {
	commands := matchmakerCommands(cfg)
	registered, err := d.session.ApplicationCommandBulkOverwrite(
		d.config.ApplicationID,
		d.config.GuildID,
		commands,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error registering commands: %w", err)
	}
	for _, cmd := range registered {
		d.logger.InfoContext(
			ctx,
			"registered command",
			"name", cmd.Name,
			"id", cmd.ID,
		)
	}
	return nil
}

// updateCustomStatus sets the bot's custom status.
func (d *Discord) updateCustomStatus(status string) error {
	return d.session.UpdateStatusComplex(
		discordgo.UpdateStatusData{
			Status: string(discordgo.StatusOnline),
			Activities: []*discordgo.Activity{
				{
					Name:  status,
					Type:  discordgo.ActivityTypeCustom,
					State: status,
				},
			},
		},
	)
}

func (d *Discord) handlerConnect(_ *discordgo.Session, _ *discordgo.Connect) {
	d.connects.Add(1)
	d.logger.Info("gateway connected")
}

func (d *Discord) handlerDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	d.disconnects.Add(1)
	d.logger.Warn("gateway disconnected")
}

// ephemeralResponse builds a basic ephemeral interaction response.
func ephemeralResponse(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

// respondEphemeral sends an ephemeral reply, logging (not returning)
// failures - by the time a response fails there's nothing to tell the
// user anyway.
func (m *Matchmaker) respondEphemeral(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	content string,
) {
	err := m.discord.session.InteractionRespond(
		i.Interaction,
		ephemeralResponse(content),
		discordgo.WithContext(ctx),
	)
	if err != nil {
		m.logger.ErrorContext(
			ctx,
			"error sending interaction response",
			tint.Err(err),
		)
	}
}

// modalInputValue extracts a text input value from a submitted modal.
func modalInputValue(
	data discordgo.ModalSubmitInteractionData,
	customID string,
) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionsRow.Components {
			input, inputOK := comp.(*discordgo.TextInput)
			if inputOK && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}

// sendDM sends a direct message, creating the DM channel as needed.
func (m *Matchmaker) sendDM(ctx context.Context, userID string, content string) error {
	channel, err := m.discord.session.UserChannelCreate(
		userID,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error creating DM channel: %w", err)
	}
	_, err = m.discord.session.ChannelMessageSend(
		channel.ID,
		content,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error sending DM: %w", err)
	}
	return nil
}
