// Package bot is the Discord front-end. It exposes the assist actions as
// slash commands; the Discord user ID is the session ID, so languages and
// API keys chosen through the bot follow the user across channels.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"VisionAssist/internal/assist"
	"VisionAssist/internal/auth"
	"VisionAssist/internal/config"
	"VisionAssist/internal/logging"
	"VisionAssist/internal/metrics"
	"VisionAssist/internal/speech"
	"VisionAssist/internal/upload"
)

// Assistant is the part of assist.Service the commands drive
type Assistant interface {
	Session(ctx context.Context, id string) assist.Snapshot
	Upload(ctx context.Context, id string, data []byte, filename, mimeType string) (*upload.Image, error)
	SelectLanguages(ctx context.Context, id, ocrDisplay, ttsDisplay string) error
	ExtractText(ctx context.Context, id string) (*assist.TextResult, error)
	ReadAloud(ctx context.Context, id string) (*speech.Artifact, error)
	DescribeScene(ctx context.Context, id string) (*assist.SceneResult, error)
	UpdateAPIKey(ctx context.Context, id, key string) error
	OpenAudio(ctx context.Context, id string) (*os.File, *speech.Artifact, error)
}

// Bot represents the Discord bot instance
type Bot struct {
	session        *discordgo.Session
	svc            Assistant
	cfg            *config.Config
	permChecker    *auth.PermissionChecker
	metrics        *metrics.Registry
	httpClient     *http.Client
	maxImageBytes  int64
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	active         sync.WaitGroup
}

// NewBot creates a new Discord bot instance
func NewBot(cfg *config.Config, svc Assistant, reg *metrics.Registry, httpClient *http.Client) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	b := newBot(cfg, svc, reg, httpClient)
	b.session = session

	// slash commands need no privileged intents
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteractionCreate)

	return b, nil
}

func newBot(cfg *config.Config, svc Assistant, reg *metrics.Registry, httpClient *http.Client) *Bot {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	return &Bot{
		svc:            svc,
		cfg:            cfg,
		permChecker:    auth.NewPermissionChecker(cfg),
		metrics:        reg,
		httpClient:     httpClient,
		maxImageBytes:  cfg.GetMaxUploadBytes(),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
}

// Start opens the gateway connection
func (b *Bot) Start() error {
	return b.session.Open()
}

// Stop cancels running commands, waits for them and closes the connection
func (b *Bot) Stop() error {
	b.shutdownCancel()

	done := make(chan struct{})
	go func() {
		b.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All Discord commands completed")
	case <-time.After(30 * time.Second):
		logging.Warn("Timeout waiting for Discord commands, proceeding with shutdown")
	}

	return b.session.Close()
}
