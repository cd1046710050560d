package matchmaker

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// InteractionLog is an audit row persisted for every interaction the bot
// handles. Writes happen after the interaction is acknowledged, off the
// handler's critical path.
type InteractionLog struct {
	ModelUintID
	ModelUnixTime

	InteractionID string `gorm:"uniqueIndex" json:"interaction_id"`
	UserID        string `gorm:"index" json:"user_id"`
	Username      string `json:"username"`

	// Type is the discordgo interaction type (command, component, modal).
	Type string `json:"type"`

	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`

	// Name is the command name, component custom ID, or modal custom ID.
	Name string `json:"name"`

	// Outcome records how the handler finished ("ok" or an error note).
	Outcome NullableString `json:"outcome"`
}

func (InteractionLog) TableName() string {
	return "interaction_logs"
}

// interactionUser returns the invoking user, which lives on Member for
// guild interactions and on User for DM interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// interactionName extracts the routable name of an interaction: the
// command name, component custom ID, or modal custom ID.
func interactionName(i *discordgo.InteractionCreate) string {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return i.ApplicationCommandData().Name
	case discordgo.InteractionMessageComponent:
		return i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		return i.ModalSubmitData().CustomID
	default:
		return ""
	}
}

// NewInteractionLog builds an audit row from an incoming interaction.
func NewInteractionLog(i *discordgo.InteractionCreate, u *discordgo.User) *InteractionLog {
	rec := &InteractionLog{
		InteractionID: i.ID,
		Type:          i.Type.String(),
		GuildID:       i.GuildID,
		ChannelID:     i.ChannelID,
		Name:          interactionName(i),
	}
	if u != nil {
		rec.UserID = u.ID
		rec.Username = u.Username
	}
	return rec
}

func (il InteractionLog) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("id", uint64(il.ID)),
		slog.String("interaction_id", il.InteractionID),
		slog.String("user_id", il.UserID),
		slog.String("type", il.Type),
		slog.String("name", il.Name),
	)
}
