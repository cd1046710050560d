package matchmaker

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Column names used in raw update maps, so typos fail loudly at the
// declaration site rather than silently in a query.
var (
	columnUserUsername   = "username"
	columnUserGlobalName = "global_name"
	columnUserLastSeen   = "last_seen"
)

// User is a Discord user the bot has seen. Rows are created lazily on
// first interaction and cached in memory.
type User struct {
	ID         string `gorm:"primaryKey" json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`

	// Ignored users are silently dropped by every handler.
	Ignored bool `gorm:"default:false" json:"ignored"`

	// LastSeen is the unix-milli timestamp of the user's last interaction.
	LastSeen int64 `json:"last_seen"`

	ModelUnixTime
}

func (User) TableName() string {
	return "users"
}

func NewUser(u discordgo.User) *User {
	return &User{
		ID:         u.ID,
		Username:   u.Username,
		GlobalName: u.GlobalName,
		Bot:        u.Bot,
	}
}

// DisplayName prefers the global display name over the username.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func (u User) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", u.ID),
		slog.String("username", u.Username),
		slog.String("global_name", u.GlobalName),
		slog.Bool("ignored", u.Ignored),
	)
}
