package auth

import (
	"slices"

	"github.com/bwmarrin/discordgo"

	"VisionAssist/internal/config"
)

// PermissionChecker handles permission validation
type PermissionChecker struct {
	config *config.Config
}

// NewPermissionChecker creates a new permission checker
func NewPermissionChecker(cfg *config.Config) *PermissionChecker {
	return &PermissionChecker{config: cfg}
}

// CheckInteraction checks if the invoking user may run a slash command
func (p *PermissionChecker) CheckInteraction(i *discordgo.InteractionCreate) bool {
	isDM := i.GuildID == ""

	var (
		userID  string
		roleIDs []string
	)
	if i.Member != nil {
		roleIDs = i.Member.Roles
		if i.Member.User != nil {
			userID = i.Member.User.ID
		}
	}
	if userID == "" && i.User != nil {
		userID = i.User.ID
	}
	if userID == "" {
		return false
	}

	// Check if user is admin
	if p.IsAdmin(userID) {
		return true
	}

	// Check DM permissions
	if isDM && !p.config.DMsAllowed() {
		return false
	}

	if !p.checkUserPermissions(userID, isDM) {
		return false
	}

	// Roles and channels only apply inside guilds
	if isDM {
		return true
	}
	return p.checkRolePermissions(roleIDs) && p.checkChannelPermissions(i.ChannelID)
}

// IsAdmin checks if user is an admin
func (p *PermissionChecker) IsAdmin(userID string) bool {
	return slices.Contains(p.config.Discord.Permissions.Users.AdminIDs, userID)
}

// checkUserPermissions validates user-level permissions
func (p *PermissionChecker) checkUserPermissions(userID string, isDM bool) bool {
	perms := p.config.Discord.Permissions.Users

	if slices.Contains(perms.BlockedIDs, userID) {
		return false
	}
	if slices.Contains(perms.AllowedIDs, userID) {
		return true
	}

	// For DMs, if no specific user permissions are set, allow by default
	if isDM {
		return len(perms.AllowedIDs) == 0
	}

	// In guilds an allowed role can still admit a user missing from the user list
	return len(perms.AllowedIDs) == 0 || len(p.config.Discord.Permissions.Roles.AllowedIDs) > 0
}

// checkRolePermissions validates role-level permissions
func (p *PermissionChecker) checkRolePermissions(roleIDs []string) bool {
	perms := p.config.Discord.Permissions.Roles

	for _, roleID := range roleIDs {
		if slices.Contains(perms.BlockedIDs, roleID) {
			return false
		}
	}
	for _, roleID := range roleIDs {
		if slices.Contains(perms.AllowedIDs, roleID) {
			return true
		}
	}

	// If no specific role permissions are set, allow by default
	return len(perms.AllowedIDs) == 0
}

// checkChannelPermissions validates channel-level permissions
func (p *PermissionChecker) checkChannelPermissions(channelID string) bool {
	perms := p.config.Discord.Permissions.Channels

	if slices.Contains(perms.BlockedIDs, channelID) {
		return false
	}
	return len(perms.AllowedIDs) == 0 || slices.Contains(perms.AllowedIDs, channelID)
}
