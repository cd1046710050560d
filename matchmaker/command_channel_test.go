package matchmaker

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subcommandInteraction builds "/command sub [options]" from a guild
// member holding ManageGuild.
func subcommandInteraction(
	userID string,
	guildID string,
	command string,
	sub string,
	opts ...*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      fmt.Sprintf("interaction-%s-%s-%s", userID, command, sub),
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: guildID,
			Member: &discordgo.Member{
				User:        &discordgo.User{ID: userID, Username: "user-" + userID},
				Permissions: discordgo.PermissionManageServer,
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: command,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{
						Type:    discordgo.ApplicationCommandOptionSubCommand,
						Name:    sub,
						Options: opts,
					},
				},
			},
		},
	}
}

func channelOption(channelID string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Type:  discordgo.ApplicationCommandOptionChannel,
		Name:  "channel",
		Value: channelID,
	}
}

func TestLFGChannelSetShowClear(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)
	ctx := context.Background()

	m.handleLFGChannelCommand(
		ctx,
		subcommandInteraction("mod-1", "g1", commandLFGChannel, "set", channelOption("lfg-here")),
	)
	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "<#lfg-here>")

	settings, err := getGuildSettings(m.writeDB, "g1")
	require.NoError(t, err)
	assert.Equal(t, "lfg-here", settings.LFGChannelID)
	assert.Equal(t, "mod-1", settings.UpdatedBy)

	m.handleLFGChannelCommand(
		ctx,
		subcommandInteraction("mod-1", "g1", commandLFGChannel, "show"),
	)
	assert.Contains(t, stub.lastResponse().Data.Content, "<#lfg-here>")

	m.handleLFGChannelCommand(
		ctx,
		subcommandInteraction("mod-1", "g1", commandLFGChannel, "clear"),
	)
	assert.Contains(t, stub.lastResponse().Data.Content, "no longer receive")

	settings, err = getGuildSettings(m.writeDB, "g1")
	require.NoError(t, err)
	assert.Empty(t, settings.LFGChannelID)
}

func TestLFGChannelShowUnconfigured(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)

	m.handleLFGChannelCommand(
		context.Background(),
		subcommandInteraction("mod-1", "g1", commandLFGChannel, "show"),
	)
	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "No LFG channel")
}

func TestLFGChannelRequiresModerator(t *testing.T) {
	t.Parallel()
	m, stub := newTestMatchmaker(t)

	i := subcommandInteraction(
		"pleb",
		"g1",
		commandLFGChannel,
		"set",
		channelOption("lfg-here"),
	)
	i.Member.Permissions = 0
	m.handleLFGChannelCommand(context.Background(), i)

	require.NotNil(t, stub.lastResponse())
	assert.Contains(t, stub.lastResponse().Data.Content, "permission")

	settings, err := getGuildSettings(m.writeDB, "g1")
	require.NoError(t, err)
	assert.Empty(t, settings.LFGChannelID)
}
