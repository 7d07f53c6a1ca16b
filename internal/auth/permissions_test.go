package auth

import (
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"VisionAssist/internal/config"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	return cfg
}

func guildInteraction(userID, channelID string, roles ...string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		GuildID:   "guild-1",
		ChannelID: channelID,
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: roles},
	}}
}

func dmInteraction(userID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ChannelID: "dm-channel",
		User:      &discordgo.User{ID: userID},
	}}
}

func TestEveryoneAllowedByDefault(t *testing.T) {
	p := NewPermissionChecker(newConfig(t))
	require.True(t, p.CheckInteraction(guildInteraction("u1", "c1")))
	require.True(t, p.CheckInteraction(dmInteraction("u1")))
}

func TestMissingUserIsRejected(t *testing.T) {
	p := NewPermissionChecker(newConfig(t))
	require.False(t, p.CheckInteraction(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{GuildID: "g"}}))
}

func TestDMsCanBeDisabled(t *testing.T) {
	cfg := newConfig(t)
	cfg.Discord.AllowDMs = false
	cfg.Discord.Permissions.Users.AdminIDs = []string{"admin"}

	p := NewPermissionChecker(cfg)
	require.False(t, p.CheckInteraction(dmInteraction("u1")))
	require.True(t, p.CheckInteraction(dmInteraction("admin")))
}

func TestUserLists(t *testing.T) {
	cfg := newConfig(t)
	cfg.Discord.Permissions.Users.BlockedIDs = []string{"troll"}
	p := NewPermissionChecker(cfg)
	require.False(t, p.CheckInteraction(guildInteraction("troll", "c1")))
	require.True(t, p.CheckInteraction(guildInteraction("u1", "c1")))

	cfg.Discord.Permissions.Users.AllowedIDs = []string{"friend"}
	require.True(t, p.CheckInteraction(guildInteraction("friend", "c1")))
	require.False(t, p.CheckInteraction(guildInteraction("u1", "c1")))
	require.False(t, p.CheckInteraction(dmInteraction("u1")))
}

func TestRoleLists(t *testing.T) {
	cfg := newConfig(t)
	cfg.Discord.Permissions.Roles.AllowedIDs = []string{"helpers"}
	cfg.Discord.Permissions.Roles.BlockedIDs = []string{"muted"}
	p := NewPermissionChecker(cfg)

	require.True(t, p.CheckInteraction(guildInteraction("u1", "c1", "helpers")))
	require.False(t, p.CheckInteraction(guildInteraction("u1", "c1")))
	require.False(t, p.CheckInteraction(guildInteraction("u1", "c1", "helpers", "muted")))
}

func TestChannelLists(t *testing.T) {
	cfg := newConfig(t)
	cfg.Discord.Permissions.Channels.AllowedIDs = []string{"assist"}
	p := NewPermissionChecker(cfg)

	require.True(t, p.CheckInteraction(guildInteraction("u1", "assist")))
	require.False(t, p.CheckInteraction(guildInteraction("u1", "general")))
	// channel rules do not apply to direct messages
	require.True(t, p.CheckInteraction(dmInteraction("u1")))
}
