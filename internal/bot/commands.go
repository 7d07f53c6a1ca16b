package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"VisionAssist/internal/assist"
	"VisionAssist/internal/logging"
	"VisionAssist/internal/metrics"
)

const (
	// commandTimeout bounds download, OCR, synthesis and description together
	commandTimeout = 2 * time.Minute
	// Discord rejects message content above this many characters
	maxContentLength = 2000

	textFilename   = "extracted_text.txt"
	speechFilename = "speech.mp3"
)

// errAdminOnly rejects /apikey from non-admins while the key is shared by everyone
var errAdminOnly = errors.New("this command is only available to administrators")

// commandInput is the parsed options of one slash command
type commandInput struct {
	userID      string
	attachment  *discordgo.MessageAttachment
	ocrLanguage string
	ttsLanguage string
	key         string
}

func parseInput(i *discordgo.InteractionCreate) commandInput {
	data := i.ApplicationCommandData()
	in := commandInput{userID: interactionUserID(i)}

	for _, opt := range data.Options {
		value, _ := opt.Value.(string)
		switch opt.Name {
		case optImage:
			if data.Resolved != nil {
				in.attachment = data.Resolved.Attachments[value]
			}
		case optOCRLanguage:
			in.ocrLanguage = value
		case optTTSLanguage:
			in.ttsLanguage = value
		case optKey:
			in.key = value
		}
	}
	return in
}

// reply is the answer to a command. Files may hold open audio files that
// are closed once the reply has been sent.
type reply struct {
	content string
	files   []*discordgo.File
	closers []io.Closer
}

func (r *reply) close() {
	for _, c := range r.closers {
		_ = c.Close()
	}
}

// handleSlashCommand acknowledges the interaction at once and answers from a
// goroutine, since OCR and remote calls outlive Discord's 3 second window
func (b *Bot) handleSlashCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	if !b.permChecker.CheckInteraction(i) {
		b.metrics.Inc(b.shutdownCtx, metrics.DiscordCommandsTotal, map[string]string{"command": name, "outcome": "denied"}, 1)
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "❌ You do not have permission to use this command.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}); err != nil {
			logging.Error("Failed to respond to interaction: %v", err)
		}
		return
	}
	in := parseInput(i)

	var flags discordgo.MessageFlags
	if name == cmdAPIKey || name == cmdLanguages {
		flags = discordgo.MessageFlagsEphemeral
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	}); err != nil {
		logging.Error("Failed to send deferred response: %v", err)
		return
	}

	b.active.Add(1)
	go func() {
		defer b.active.Done()

		ctx, cancel := context.WithTimeout(b.shutdownCtx, commandTimeout)
		defer cancel()

		r := b.execute(ctx, name, in)
		defer r.close()

		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: &r.content,
			Files:   r.files,
		}); err != nil {
			logging.Error("Failed to edit interaction response: %v", err)
		}
	}()
}

// execute runs one command and renders its outcome
func (b *Bot) execute(ctx context.Context, name string, in commandInput) reply {
	var (
		r   reply
		err error
	)
	switch name {
	case cmdExtract:
		r, err = b.runExtract(ctx, in)
	case cmdReadAloud:
		r, err = b.runReadAloud(ctx, in)
	case cmdDescribe:
		r, err = b.runDescribe(ctx, in)
	case cmdLanguages:
		r, err = b.runLanguages(ctx, in)
	case cmdAPIKey:
		r, err = b.runAPIKey(ctx, in)
	default:
		err = fmt.Errorf("unknown command %q", name)
	}

	outcome := "ok"
	switch {
	case errors.Is(err, errAdminOnly):
		outcome = "denied"
		r = reply{content: "❌ This command is only available to administrators"}
	case err != nil:
		r.close()
		outcome = string(assist.Classify(err))
		r = reply{content: formatMessage(assist.Present(err))}
		logging.Debug("Command /%s for user %s failed: %v", name, in.userID, err)
	}
	b.metrics.Inc(ctx, metrics.DiscordCommandsTotal, map[string]string{"command": name, "outcome": outcome}, 1)
	return r
}

// prepare uploads the attached image, if any, and applies the language
// options. Without an attachment the user's previous image is reused.
func (b *Bot) prepare(ctx context.Context, in commandInput) error {
	if in.attachment != nil {
		data, mimeType, err := b.downloadAttachment(ctx, in.attachment)
		if err != nil {
			return err
		}
		if _, err := b.svc.Upload(ctx, in.userID, data, in.attachment.Filename, mimeType); err != nil {
			return err
		}
	}
	return b.applyLanguages(ctx, in)
}

// applyLanguages changes only the languages given, keeping the others
func (b *Bot) applyLanguages(ctx context.Context, in commandInput) error {
	if in.ocrLanguage == "" && in.ttsLanguage == "" {
		return nil
	}
	snap := b.svc.Session(ctx, in.userID)
	ocrLanguage, ttsLanguage := in.ocrLanguage, in.ttsLanguage
	if ocrLanguage == "" {
		ocrLanguage = snap.OCRLanguage.Display
	}
	if ttsLanguage == "" {
		ttsLanguage = snap.TTSLanguage.Display
	}
	return b.svc.SelectLanguages(ctx, in.userID, ocrLanguage, ttsLanguage)
}

func (b *Bot) runExtract(ctx context.Context, in commandInput) (reply, error) {
	if err := b.prepare(ctx, in); err != nil {
		return reply{}, err
	}
	res, err := b.svc.ExtractText(ctx, in.userID)
	if err != nil {
		return reply{}, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return reply{content: formatMessage(assist.Message{Severity: assist.SeverityWarning, Text: "No text was detected in the image."})}, nil
	}

	return reply{
		content: codeBlock(fmt.Sprintf("**Extracted Text** (%s)", res.Language.Display), res.Text),
		files: []*discordgo.File{{
			Name:        textFilename,
			ContentType: "text/plain; charset=utf-8",
			Reader:      strings.NewReader(res.Text),
		}},
	}, nil
}

func (b *Bot) runReadAloud(ctx context.Context, in commandInput) (reply, error) {
	if err := b.prepare(ctx, in); err != nil {
		return reply{}, err
	}
	if _, err := b.svc.ReadAloud(ctx, in.userID); err != nil {
		return reply{}, err
	}
	f, _, err := b.svc.OpenAudio(ctx, in.userID)
	if err != nil {
		return reply{}, err
	}

	return reply{
		content: formatMessage(assist.Success("Speech generated!")),
		files: []*discordgo.File{{
			Name:        speechFilename,
			ContentType: "audio/mpeg",
			Reader:      f,
		}},
		closers: []io.Closer{f},
	}, nil
}

func (b *Bot) runDescribe(ctx context.Context, in commandInput) (reply, error) {
	if err := b.prepare(ctx, in); err != nil {
		return reply{}, err
	}
	res, err := b.svc.DescribeScene(ctx, in.userID)
	if err != nil {
		return reply{}, err
	}
	return reply{content: truncate("**Scene Description**\n"+res.Text, maxContentLength)}, nil
}

func (b *Bot) runLanguages(ctx context.Context, in commandInput) (reply, error) {
	if err := b.applyLanguages(ctx, in); err != nil {
		return reply{}, err
	}
	snap := b.svc.Session(ctx, in.userID)
	return reply{content: fmt.Sprintf("OCR language: `%s`\nTTS language: `%s`", snap.OCRLanguage.Display, snap.TTSLanguage.Display)}, nil
}

func (b *Bot) runAPIKey(ctx context.Context, in commandInput) (reply, error) {
	if !b.cfg.SessionScoped() && !b.permChecker.IsAdmin(in.userID) {
		return reply{}, errAdminOnly
	}
	if err := b.svc.UpdateAPIKey(ctx, in.userID, in.key); err != nil {
		return reply{}, err
	}
	return reply{content: formatMessage(assist.Success("API key updated successfully"))}, nil
}

func formatMessage(msg assist.Message) string {
	var prefix string
	switch msg.Severity {
	case assist.SeveritySuccess:
		prefix = "✅ "
	case assist.SeverityWarning:
		prefix = "⚠️ "
	case assist.SeverityError:
		prefix = "❌ "
	}
	return truncate(prefix+msg.Text, maxContentLength)
}

// codeBlock renders text under a title, cut to fit one message. The full
// text travels as an attachment.
func codeBlock(title, text string) string {
	const fence = "\n```\n"
	room := maxContentLength - utf8.RuneCountInString(title) - 2*utf8.RuneCountInString(fence)
	return title + fence + truncate(strings.ReplaceAll(text, "```", "'''"), room) + fence
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
