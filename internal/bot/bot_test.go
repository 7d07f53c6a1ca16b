package bot

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"VisionAssist/internal/assist"
	"VisionAssist/internal/config"
	"VisionAssist/internal/credentials"
	"VisionAssist/internal/metrics"
	"VisionAssist/internal/speech"
	"VisionAssist/internal/upload"
)

type fakeOCR struct {
	mu    sync.Mutex
	text  string
	codes []string
}

func (f *fakeOCR) Extract(_ context.Context, _ *upload.Image, code string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	return f.text, nil
}

type fakeSpeech struct {
	dir   string
	codes []string
}

func (f *fakeSpeech) Synthesize(_ context.Context, text, code string) (*speech.Artifact, error) {
	f.codes = append(f.codes, code)
	id := uuid.NewString()
	path := filepath.Join(f.dir, id+".mp3")
	data := []byte("ID3" + text)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return &speech.Artifact{ID: id, Path: path, Language: code, CreatedAt: time.Now(), Size: int64(len(data))}, nil
}

type fakeScene struct {
	keys []string
}

func (f *fakeScene) Describe(_ context.Context, apiKey string, _ []byte, _ string) (string, error) {
	f.keys = append(f.keys, apiKey)
	return "A cat sits on a mat.", nil
}

type harness struct {
	bot    *Bot
	ocr    *fakeOCR
	speech *fakeSpeech
	scene  *fakeScene
	reg    *metrics.Registry
	cdn    *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Server.MaxUploadMB = 1

	h := &harness{
		ocr:    &fakeOCR{text: "STOP"},
		speech: &fakeSpeech{dir: t.TempDir()},
		scene:  &fakeScene{},
		reg:    metrics.NewRegistry(),
	}
	artifacts := speech.NewArtifactStore(time.Hour, h.reg)
	t.Cleanup(func() { _ = artifacts.Close() })

	svc := assist.NewService(assist.Dependencies{
		OCR:         h.ocr,
		Speech:      h.speech,
		Artifacts:   artifacts,
		Scene:       h.scene,
		Credentials: credentials.NewSessionStore(nil, nil),
		Metrics:     h.reg,
	}, assist.Options{MaxSessions: 10, SessionTTL: time.Hour})
	t.Cleanup(svc.Close)

	png := pngBytes(t)
	h.cdn = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sign.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	t.Cleanup(h.cdn.Close)

	h.bot = newBot(cfg, svc, h.reg, h.cdn.Client())
	return h
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	img.Set(3, 3, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (h *harness) attachment(name string) *discordgo.MessageAttachment {
	return &discordgo.MessageAttachment{
		ID:          "att-1",
		URL:         h.cdn.URL + "/" + name,
		Filename:    name,
		ContentType: "image/png",
		Size:        100,
	}
}

func TestParseInput(t *testing.T) {
	att := &discordgo.MessageAttachment{ID: "123", Filename: "sign.png"}
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:   discordgo.InteractionApplicationCommand,
		Member: &discordgo.Member{User: &discordgo.User{ID: "user-1"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: cmdReadAloud,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: optImage, Type: discordgo.ApplicationCommandOptionAttachment, Value: "123"},
				{Name: optTTSLanguage, Type: discordgo.ApplicationCommandOptionString, Value: "Tamil"},
			},
			Resolved: &discordgo.ApplicationCommandInteractionDataResolved{
				Attachments: map[string]*discordgo.MessageAttachment{"123": att},
			},
		},
	}}

	in := parseInput(i)
	require.Equal(t, "user-1", in.userID)
	require.Same(t, att, in.attachment)
	require.Equal(t, "Tamil", in.ttsLanguage)
	require.Empty(t, in.ocrLanguage)
}

func TestInteractionUserIDInDirectMessage(t *testing.T) {
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "dm-user"}}}
	require.Equal(t, "dm-user", interactionUserID(i))
}

func TestExtractCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.bot.execute(ctx, cmdExtract, commandInput{userID: "u1", attachment: h.attachment("sign.png"), ocrLanguage: "Hindi"})
	defer r.close()

	require.Contains(t, r.content, "**Extracted Text** (Hindi)")
	require.Contains(t, r.content, "STOP")
	require.Len(t, r.files, 1)
	require.Equal(t, textFilename, r.files[0].Name)
	body, err := io.ReadAll(r.files[0].Reader)
	require.NoError(t, err)
	require.Equal(t, "STOP", string(body))
	require.Equal(t, []string{"hin"}, h.ocr.codes)

	require.Equal(t, int64(1), h.reg.Value(metrics.DiscordCommandsTotal, map[string]string{"command": cmdExtract, "outcome": "ok"}))
}

func TestReadAloudCommandAttachesAudio(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.bot.execute(ctx, cmdReadAloud, commandInput{userID: "u1", attachment: h.attachment("sign.png"), ttsLanguage: "Telugu"})
	defer r.close()

	require.Equal(t, "✅ Speech generated!", r.content)
	require.Len(t, r.files, 1)
	require.Equal(t, speechFilename, r.files[0].Name)
	require.Equal(t, "audio/mpeg", r.files[0].ContentType)
	audio, err := io.ReadAll(r.files[0].Reader)
	require.NoError(t, err)
	require.Equal(t, "ID3STOP", string(audio))
	require.Equal(t, []string{"te"}, h.speech.codes)
}

func TestCommandsWithoutImageWarn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, name := range []string{cmdExtract, cmdReadAloud, cmdDescribe} {
		r := h.bot.execute(ctx, name, commandInput{userID: "u1"})
		require.Equal(t, "⚠️ Please upload an image first.", r.content, name)
		require.Empty(t, r.files)
	}
	require.Empty(t, h.ocr.codes)
	require.Empty(t, h.scene.keys)
	require.Equal(t, int64(1), h.reg.Value(metrics.DiscordCommandsTotal, map[string]string{
		"command": cmdDescribe,
		"outcome": string(assist.KindMissingInput),
	}))
}

func TestCommandReusesPreviousImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.bot.execute(ctx, cmdExtract, commandInput{userID: "u1", attachment: h.attachment("sign.png")})
	r.close()

	r = h.bot.execute(ctx, cmdDescribe, commandInput{userID: "u1"})
	require.Equal(t, "**Scene Description**\nA cat sits on a mat.", r.content)
}

func TestAPIKeyThenDescribe(t *testing.T) {
	h := newHarness(t)
	h.bot.cfg.Credentials.Scope = config.ScopeSession
	ctx := context.Background()

	r := h.bot.execute(ctx, cmdAPIKey, commandInput{userID: "u1", key: "  "})
	require.Equal(t, "⚠️ Please enter a valid API key", r.content)

	r = h.bot.execute(ctx, cmdAPIKey, commandInput{userID: "u1", key: "key-1"})
	require.Equal(t, "✅ API key updated successfully", r.content)

	r = h.bot.execute(ctx, cmdDescribe, commandInput{userID: "u1", attachment: h.attachment("sign.png")})
	require.Equal(t, "**Scene Description**\nA cat sits on a mat.", r.content)

	// another user has no key of their own
	h.bot.execute(ctx, cmdDescribe, commandInput{userID: "u2", attachment: h.attachment("sign.png")})
	require.Equal(t, []string{"key-1", ""}, h.scene.keys)
}

func TestSharedAPIKeyIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	h.bot.cfg.Discord.Permissions.Users.AdminIDs = []string{"admin"}
	ctx := context.Background()

	r := h.bot.execute(ctx, cmdAPIKey, commandInput{userID: "random-user", key: "other-key"})
	require.Equal(t, "❌ This command is only available to administrators", r.content)
	require.Equal(t, int64(1), h.reg.Value(metrics.DiscordCommandsTotal, map[string]string{"command": cmdAPIKey, "outcome": "denied"}))

	h.bot.execute(ctx, cmdDescribe, commandInput{userID: "random-user", attachment: h.attachment("sign.png")})
	require.Equal(t, []string{""}, h.scene.keys)

	r = h.bot.execute(ctx, cmdAPIKey, commandInput{userID: "admin", key: "key-1"})
	require.Equal(t, "✅ API key updated successfully", r.content)
}

func TestLanguagesCommandKeepsUnsetLanguage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.bot.execute(ctx, cmdLanguages, commandInput{userID: "u1", ocrLanguage: "Tamil"})
	require.Contains(t, r.content, "OCR language: `Tamil`")
	require.Contains(t, r.content, "TTS language: `English`")

	r = h.bot.execute(ctx, cmdLanguages, commandInput{userID: "u1"})
	require.Contains(t, r.content, "OCR language: `Tamil`")

	r = h.bot.execute(ctx, cmdLanguages, commandInput{userID: "u1", ttsLanguage: "Klingon"})
	require.True(t, strings.HasPrefix(r.content, "❌ "))
}

func TestDownloadFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.bot.execute(ctx, cmdExtract, commandInput{userID: "u1", attachment: h.attachment("missing.png")})
	require.Equal(t, "❌ Failed to download image: HTTP 404", r.content)

	big := h.attachment("sign.png")
	big.Size = 2 * 1024 * 1024
	r = h.bot.execute(ctx, cmdExtract, commandInput{userID: "u1", attachment: big})
	require.True(t, strings.HasPrefix(r.content, "⚠️ image too large"))
	require.Empty(t, h.ocr.codes)
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	r := h.bot.execute(context.Background(), "dance", commandInput{userID: "u1"})
	require.True(t, strings.HasPrefix(r.content, "❌ "))
}

func TestCodeBlockFitsOneMessage(t *testing.T) {
	long := strings.Repeat("ஆ", 5000)
	out := codeBlock("**Extracted Text** (Tamil)", long)
	require.LessOrEqual(t, utf8.RuneCountInString(out), maxContentLength)
	require.True(t, strings.HasSuffix(out, "…\n```\n"))

	require.Equal(t, "abc", truncate("abc", 3))
	require.Equal(t, "ab…", truncate("abcd", 3))
}

func TestCommandDefinitions(t *testing.T) {
	seen := map[string]bool{}
	for _, cmd := range commands() {
		require.False(t, seen[cmd.Name], cmd.Name)
		seen[cmd.Name] = true
		require.NotEmpty(t, cmd.Description)
	}
	for _, name := range []string{cmdExtract, cmdReadAloud, cmdDescribe, cmdAPIKey, cmdLanguages} {
		require.True(t, seen[name], name)
	}
	require.Len(t, languageChoices(), 4)
}
