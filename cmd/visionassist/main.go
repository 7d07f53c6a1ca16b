package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"VisionAssist/internal/assist"
	"VisionAssist/internal/bot"
	"VisionAssist/internal/config"
	"VisionAssist/internal/credentials"
	"VisionAssist/internal/lang"
	"VisionAssist/internal/llm"
	"VisionAssist/internal/logging"
	"VisionAssist/internal/metrics"
	inet "VisionAssist/internal/net"
	"VisionAssist/internal/ocr"
	"VisionAssist/internal/ocr/tesseract"
	"VisionAssist/internal/speech"
	"VisionAssist/internal/storage"
	"VisionAssist/internal/web"
)

const (
	shutdownTimeout = 15 * time.Second
	// per-session keys in the database that nobody used for this long are dropped
	sessionKeyMaxAge = 30 * 24 * time.Hour
	purgeInterval    = time.Hour
)

// main is the entry point for VisionAssist.
// It handles command-line flags, loads configuration, and manages the lifecycle
// of the web front-end and the optional Discord bot.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	check := flag.Bool("check", false, "Check OCR language data and scene description connectivity, then exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.InitializeLogging(cfg.Logging.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logging.ReplaceStandardLogger()

	if *check {
		if !runCheck(cfg) {
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		logging.Fatal("VisionAssist failed: %v", err)
	}
}

// app holds the long-lived components and closes them in reverse order
type app struct {
	svc       *assist.Service
	artifacts *speech.ArtifactStore
	fileStore *credentials.FileStore
	keyStore  *storage.SessionKeyStore
	prefs     *storage.PreferencesStore
	db        *sql.DB
	reg       *metrics.Registry
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{reg: metrics.NewRegistry()}

	fileStore, err := credentials.NewFileStore(cfg.Credentials.EnvFile)
	if err != nil {
		return nil, err
	}
	a.fileStore = fileStore

	var creds credentials.Store = fileStore
	if cfg.Storage.DatabaseURL != "" {
		db, err := storage.GetDatabase(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.db = db
		if err := storage.InitializeAllTables(ctx, db); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		prefs, err := storage.NewPreferencesStore(ctx, db)
		if err != nil {
			a.close()
			return nil, err
		}
		a.prefs = prefs
	}
	if cfg.SessionScoped() {
		var backend credentials.KeyBackend
		if a.db != nil {
			a.keyStore = storage.NewSessionKeyStore(a.db)
			backend = a.keyStore
		}
		creds = credentials.NewSessionStore(backend, fileStore)
	}

	engine, err := tesseract.NewEngine(tesseract.Options{TessdataPrefix: cfg.OCR.TessdataPrefix})
	if err != nil {
		a.close()
		return nil, err
	}

	scene, err := llm.NewClient(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	a.artifacts = speech.NewArtifactStore(cfg.GetSpeechRetention(), a.reg)
	tts := speech.NewGoogleTTS(speech.GoogleOptions{
		BaseURL:    cfg.Speech.BaseURL,
		TempDir:    cfg.GetSpeechTempDir(),
		HTTPClient: inet.NewOptimizedClient(cfg.GetSpeechTimeout()),
	})

	ocrLang, err := lang.Parse(cfg.OCR.DefaultLanguage)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("invalid default OCR language: %w", err)
	}
	ttsLang, err := lang.Parse(cfg.Speech.DefaultLanguage)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("invalid default speech language: %w", err)
	}

	deps := assist.Dependencies{
		OCR:         ocr.NewExtractor(engine),
		Speech:      tts,
		Artifacts:   a.artifacts,
		Scene:       scene,
		Credentials: creds,
		Metrics:     a.reg,
	}
	if a.prefs != nil {
		deps.Preferences = a.prefs
	}

	a.svc = assist.NewService(deps, assist.Options{
		DefaultOCRLanguage: ocrLang,
		DefaultTTSLanguage: ttsLang,
		MaxSessions:        cfg.Sessions.Max,
		SessionTTL:         cfg.GetSessionTTL(),
		// keys held in memory die with the session; database keys outlive it
		ForgetKeysOnEvict: cfg.SessionScoped() && a.keyStore == nil,
	})
	return a, nil
}

func (a *app) close() {
	if a.svc != nil {
		a.svc.Close()
	}
	if a.artifacts != nil {
		if err := a.artifacts.Close(); err != nil {
			logging.Warn("Failed to delete audio files: %v", err)
		}
	}
	if a.prefs != nil {
		if err := a.prefs.Close(); err != nil {
			logging.Warn("Failed to close preferences store: %v", err)
		}
	}
	if a.db != nil {
		if err := storage.CloseDatabase(); err != nil {
			logging.Warn("Failed to close shared database connection: %v", err)
		}
	}
}

// run starts the front-ends and blocks until a signal or a fatal error
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	server, err := web.NewServer(a.svc, a.reg, web.Options{
		Address:        cfg.Server.Address,
		MaxUploadBytes: cfg.GetMaxUploadBytes(),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.WatchEnvFile() {
		g.Go(func() error { return a.fileStore.Watch(gctx) })
	}

	if a.keyStore != nil {
		g.Go(func() error { return purgeSessionKeys(gctx, a.keyStore) })
	}

	if cfg.DiscordEnabled() {
		discordBot, err := bot.NewBot(cfg, a.svc, a.reg, inet.NewOptimizedClient(config.DefaultHTTPTimeout*time.Second))
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
		g.Go(func() error {
			if err := discordBot.Start(); err != nil {
				return fmt.Errorf("failed to start bot: %w", err)
			}
			logging.Info("Discord bot is running")
			<-gctx.Done()
			return discordBot.Stop()
		})
	}

	if logging.GetLogLevel() <= logging.INFO {
		logging.PrintfAndLog("VisionAssist is running on %s. Press CTRL-C to exit.\n", cfg.Server.Address)
	}

	err = g.Wait()
	if logging.GetLogLevel() <= logging.INFO {
		logging.PrintlnAndLog("Shutting down...")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func purgeSessionKeys(ctx context.Context, keys *storage.SessionKeyStore) error {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := keys.PurgeOlderThan(ctx, sessionKeyMaxAge)
			if err != nil {
				logging.Warn("Failed to purge stale session keys: %v", err)
				continue
			}
			if n > 0 {
				logging.Info("Purged %d stale session keys", n)
			}
		}
	}
}

// runCheck verifies the OCR language data and the scene description key
func runCheck(cfg *config.Config) bool {
	ok := true

	if logging.GetLogLevel() <= logging.INFO {
		logging.PrintlnAndLog("🔍 Checking VisionAssist dependencies...")
		logging.PrintlnAndLog("=====================================")
	}

	engine, err := tesseract.NewEngine(tesseract.Options{TessdataPrefix: cfg.OCR.TessdataPrefix})
	if err != nil {
		logging.PrintfAndLog("❌ OCR: %v\n", err)
		ok = false
	} else if codes, err := engine.Languages(); err == nil {
		logging.PrintfAndLog("✅ OCR: %d languages available\n", len(codes))
	}

	fileStore, err := credentials.NewFileStore(cfg.Credentials.EnvFile)
	if err != nil {
		logging.PrintfAndLog("❌ Credentials: %v\n", err)
		return false
	}
	key, _ := fileStore.APIKey(context.Background(), "")

	scene, err := llm.NewClient(cfg)
	if err != nil {
		logging.PrintfAndLog("❌ Scene description: %v\n", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetSceneTimeout())
	defer cancel()
	if err := scene.CheckConnectivity(ctx, key); err != nil {
		logging.PrintfAndLog("❌ Scene description (%s): %v\n", scene.ProviderName(), err)
		ok = false
	} else {
		logging.PrintfAndLog("✅ Scene description (%s): connection successful\n", scene.ProviderName())
	}

	return ok
}
