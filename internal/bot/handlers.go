package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"VisionAssist/internal/lang"
	"VisionAssist/internal/logging"
)

// Command names
const (
	cmdExtract   = "extract"
	cmdReadAloud = "readaloud"
	cmdDescribe  = "describe"
	cmdAPIKey    = "apikey"
	cmdLanguages = "languages"
)

// Option names
const (
	optImage       = "image"
	optOCRLanguage = "ocr_language"
	optTTSLanguage = "tts_language"
	optKey         = "key"
)

// onReady handles the ready event
func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	logging.Info("Bot is ready! Logged in as %s", event.User.String())

	if status := b.cfg.GetStatusMessage(); status != "" {
		if err := s.UpdateGameStatus(0, status); err != nil {
			// Non-fatal error, just log it
			logging.Warn("Failed to update game status: %v", err)
		}
	}

	if clientID := b.cfg.Discord.ClientID; clientID != "" {
		inviteURL := fmt.Sprintf("https://discord.com/oauth2/authorize?client_id=%s&permissions=2147485696&scope=bot+applications.commands", clientID)
		logging.Info("BOT INVITE URL: %s", inviteURL)
	}

	if err := b.registerCommands(); err != nil {
		logging.Error("Failed to register commands: %v", err)
	}
}

func languageChoices() []*discordgo.ApplicationCommandOptionChoice {
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, l := range lang.All() {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: l.Display, Value: l.Display})
	}
	return choices
}

func imageOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionAttachment,
		Name:        optImage,
		Description: "JPG, JPEG or PNG image (defaults to your last image)",
	}
}

func languageOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Choices:     languageChoices(),
	}
}

// commands returns the slash command definitions
func commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        cmdExtract,
			Description: "Extract text from an image",
			Options: []*discordgo.ApplicationCommandOption{
				imageOption(),
				languageOption(optOCRLanguage, "Language of the text in the image"),
			},
		},
		{
			Name:        cmdReadAloud,
			Description: "Read the text of an image aloud",
			Options: []*discordgo.ApplicationCommandOption{
				imageOption(),
				languageOption(optOCRLanguage, "Language of the text in the image"),
				languageOption(optTTSLanguage, "Language of the narration"),
			},
		},
		{
			Name:        cmdDescribe,
			Description: "Describe the scene in an image",
			Options: []*discordgo.ApplicationCommandOption{
				imageOption(),
			},
		},
		{
			Name:        cmdLanguages,
			Description: "View or change your OCR and speech languages",
			Options: []*discordgo.ApplicationCommandOption{
				languageOption(optOCRLanguage, "Language of the text in images"),
				languageOption(optTTSLanguage, "Language of the narration"),
			},
		},
		{
			Name:        cmdAPIKey,
			Description: "Set your Gemini API key",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optKey,
					Description: "Gemini API key",
					Required:    true,
				},
			},
		},
	}
}

// registerCommands registers slash commands
func (b *Bot) registerCommands() error {
	for _, cmd := range commands() {
		_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", cmd)
		if err != nil {
			return fmt.Errorf("failed to create command %s: %w", cmd.Name, err)
		}
	}
	return nil
}

// onInteractionCreate handles slash command interactions
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	b.handleSlashCommand(s, i)
}

// interactionUserID returns the invoking user for guild and DM interactions
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
