// Package config provides configuration management for VisionAssist.
// It loads the YAML configuration file, applies defaults, lets environment
// variables override individual settings and exposes typed getters for the
// adapters (OCR, speech, scene description) and the front-ends.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	yaml "gopkg.in/yaml.v3"
)

// Config represents the main configuration structure
type Config struct {
	Server struct {
		Address     string `yaml:"address" env:"VISION_SERVER_ADDRESS"`
		MaxUploadMB int    `yaml:"max_upload_mb" env:"VISION_MAX_UPLOAD_MB"`
	} `yaml:"server"`

	// Credentials settings. Scope decides whether an API key update is shared
	// by every session ("shared") or isolated per session ("session").
	Credentials struct {
		EnvFile string `yaml:"env_file" env:"VISION_ENV_FILE"`
		Scope   string `yaml:"scope" env:"VISION_CREDENTIALS_SCOPE"`
		Watch   bool   `yaml:"watch" env:"VISION_WATCH_ENV_FILE"`
	} `yaml:"credentials"`

	// Database settings, only used for session-scoped credentials
	Storage struct {
		DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	} `yaml:"storage"`

	OCR struct {
		TessdataPrefix  string `yaml:"tessdata_prefix" env:"TESSDATA_PREFIX"`
		DefaultLanguage string `yaml:"default_language"`
	} `yaml:"ocr"`

	Speech struct {
		BaseURL         string `yaml:"base_url" env:"VISION_SPEECH_BASE_URL"`
		TempDir         string `yaml:"temp_dir" env:"VISION_SPEECH_TEMP_DIR"`
		Retention       string `yaml:"retention"`
		Timeout         string `yaml:"timeout"`
		DefaultLanguage string `yaml:"default_language"`
	} `yaml:"speech"`

	Scene struct {
		Provider string `yaml:"provider" env:"VISION_SCENE_PROVIDER"`
		Model    string `yaml:"model" env:"VISION_SCENE_MODEL"`
		BaseURL  string `yaml:"base_url" env:"VISION_SCENE_BASE_URL"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"scene"`

	Sessions struct {
		Max int    `yaml:"max"`
		TTL string `yaml:"ttl"`
	} `yaml:"sessions"`

	// Discord settings. The bot only starts when BotToken is set.
	Discord struct {
		BotToken      string      `yaml:"bot_token" env:"DISCORD_BOT_TOKEN"`
		ClientID      string      `yaml:"client_id" env:"DISCORD_CLIENT_ID"`
		StatusMessage string      `yaml:"status_message"`
		AllowDMs      bool        `yaml:"allow_dms" env:"DISCORD_ALLOW_DMS"`
		Permissions   Permissions `yaml:"permissions"`
	} `yaml:"discord"`

	Logging struct {
		LogLevel string `yaml:"log_level" env:"VISION_LOG_LEVEL"`
	} `yaml:"logging"`
}

// IDList is an allow/block list of Discord IDs
type IDList struct {
	AllowedIDs []string `yaml:"allowed_ids"`
	BlockedIDs []string `yaml:"blocked_ids"`
}

// Permissions restricts who may use the Discord commands. Empty lists allow everyone.
type Permissions struct {
	Users struct {
		AdminIDs   []string `yaml:"admin_ids"`
		AllowedIDs []string `yaml:"allowed_ids"`
		BlockedIDs []string `yaml:"blocked_ids"`
	} `yaml:"users"`
	Roles    IDList `yaml:"roles"`
	Channels IDList `yaml:"channels"`
}

// LoadConfig loads configuration from a YAML file and applies environment
// overrides. A missing file is not an error: defaults and environment
// variables are enough to run the web front-end.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = "configs/config.yaml"
	}

	data, err := os.ReadFile(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return parseConfig(data)
}

// parseConfig parses YAML data into Config struct
func parseConfig(data []byte) (*Config, error) {
	// booleans default to true, keys absent from the file keep these values
	var config Config
	config.Credentials.Watch = true
	config.Discord.AllowDMs = true

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	// Set defaults
	if config.Server.Address == "" {
		config.Server.Address = DefaultServerAddress
	}
	if config.Server.MaxUploadMB <= 0 {
		config.Server.MaxUploadMB = DefaultMaxUploadMB
	}
	if config.Credentials.EnvFile == "" {
		config.Credentials.EnvFile = DefaultEnvFile
	}
	if config.Credentials.Scope == "" {
		config.Credentials.Scope = DefaultCredentialsScope
	}
	if config.OCR.DefaultLanguage == "" {
		config.OCR.DefaultLanguage = DefaultOCRLanguage
	}
	if config.Speech.BaseURL == "" {
		config.Speech.BaseURL = DefaultSpeechBaseURL
	}
	if config.Speech.DefaultLanguage == "" {
		config.Speech.DefaultLanguage = DefaultSpeechLanguage
	}
	if config.Scene.Provider == "" {
		config.Scene.Provider = DefaultSceneProvider
	}
	if config.Scene.Model == "" && config.Scene.Provider == ProviderGemini {
		config.Scene.Model = DefaultSceneModel
	}
	if config.Sessions.Max <= 0 {
		config.Sessions.Max = DefaultMaxSessions
	}
	if config.Discord.StatusMessage == "" {
		config.Discord.StatusMessage = DefaultStatusMessage
	}
	if config.Logging.LogLevel == "" {
		config.Logging.LogLevel = DefaultLogLevel
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// validate rejects values that would otherwise fail much later at request time
func (c *Config) validate() error {
	switch c.Credentials.Scope {
	case ScopeShared, ScopeSession:
	default:
		return fmt.Errorf("invalid credentials.scope %q (expected %q or %q)", c.Credentials.Scope, ScopeShared, ScopeSession)
	}

	switch c.Scene.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid scene.provider %q (expected %q or %q)", c.Scene.Provider, ProviderGemini, ProviderOpenAI)
	}
	if c.Scene.Model == "" {
		return fmt.Errorf("scene.model is required for provider %q", c.Scene.Provider)
	}

	durations := map[string]string{
		"speech.retention": c.Speech.Retention,
		"speech.timeout":   c.Speech.Timeout,
		"scene.timeout":    c.Scene.Timeout,
		"sessions.ttl":     c.Sessions.TTL,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
	}

	return nil
}

// SessionScoped returns true if API key updates must stay within one session
func (c *Config) SessionScoped() bool {
	return c.Credentials.Scope == ScopeSession
}

// WatchEnvFile returns whether the credentials file is watched for external edits
func (c *Config) WatchEnvFile() bool {
	return c.Credentials.Watch
}

// GetMaxUploadBytes returns the request body limit for image uploads
func (c *Config) GetMaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) * 1024 * 1024
}

// GetSpeechRetention returns how long synthesized audio files are kept
// Falls back to DefaultSpeechRetention if not specified
func (c *Config) GetSpeechRetention() time.Duration {
	return durationOrDefault(c.Speech.Retention, DefaultSpeechRetention)
}

// GetSpeechTimeout returns the HTTP timeout for the TTS service
func (c *Config) GetSpeechTimeout() time.Duration {
	return durationOrDefault(c.Speech.Timeout, DefaultSpeechTimeout)
}

// GetSpeechTempDir returns the directory for temporary audio files
func (c *Config) GetSpeechTempDir() string {
	if c.Speech.TempDir != "" {
		return c.Speech.TempDir
	}
	return os.TempDir()
}

// GetSceneTimeout returns the timeout for one scene description call
func (c *Config) GetSceneTimeout() time.Duration {
	return durationOrDefault(c.Scene.Timeout, DefaultSceneTimeout)
}

// GetSessionTTL returns the idle lifetime of a session
func (c *Config) GetSessionTTL() time.Duration {
	return durationOrDefault(c.Sessions.TTL, DefaultSessionTTL)
}

// GetStatusMessage returns the Discord status, truncated to Discord's limit
func (c *Config) GetStatusMessage() string {
	if len(c.Discord.StatusMessage) > MaxStatusMessageLength {
		return c.Discord.StatusMessage[:MaxStatusMessageLength]
	}
	return c.Discord.StatusMessage
}

// DMsAllowed returns whether the bot answers commands in direct messages
func (c *Config) DMsAllowed() bool {
	return c.Discord.AllowDMs
}

// DiscordEnabled returns true if the Discord front-end should start
func (c *Config) DiscordEnabled() bool {
	return c.Discord.BotToken != ""
}

func durationOrDefault(value, fallback string) time.Duration {
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	d, _ := time.ParseDuration(fallback)
	return d
}
