package config

// Default values for configuration
const (
	// Server defaults
	DefaultServerAddress = ":8501"
	DefaultMaxUploadMB   = 20

	// Credentials defaults
	DefaultEnvFile          = ".env"
	DefaultCredentialsScope = ScopeShared
	APIKeyEnvName           = "GOOGLE_API_KEY"

	// OCR defaults
	DefaultOCRLanguage = "English"

	// Speech defaults
	DefaultSpeechBaseURL   = "https://translate.google.com"
	DefaultSpeechLanguage  = "English"
	DefaultSpeechRetention = "10m"
	DefaultSpeechTimeout   = "30s"

	// Scene description defaults
	DefaultSceneProvider = ProviderGemini
	DefaultSceneModel    = "gemini-1.5-pro"
	DefaultSceneTimeout  = "60s"

	// Session defaults
	DefaultMaxSessions = 1000
	DefaultSessionTTL  = "1h"

	// Discord defaults
	DefaultStatusMessage   = "describing scenes"
	MaxStatusMessageLength = 128

	// HTTP timeouts and limits
	DefaultHTTPTimeout    = 30 // seconds
	MaxIdleConns          = 100
	MaxIdleConnsPerHost   = 100
	IdleConnTimeout       = 90 // seconds
	TLSHandshakeTimeout   = 10 // seconds
	ExpectContinueTimeout = 1  // second

	// Logging defaults
	DefaultLogLevel = "INFO"
)

// Credential scopes
const (
	ScopeShared  = "shared"
	ScopeSession = "session"
)

// Scene description providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)
