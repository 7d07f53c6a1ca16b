package assist

import (
	"sync"
	"time"

	"VisionAssist/internal/lang"
	"VisionAssist/internal/speech"
	"VisionAssist/internal/upload"
)

// TextResult is the outcome of ExtractText
type TextResult struct {
	Text     string
	Language lang.Language
}

// SceneResult is the outcome of DescribeScene
type SceneResult struct {
	Text string
}

// Session is the state of one user. Actions on a session run one at a time.
type Session struct {
	ID string

	mu          sync.Mutex
	image       *upload.Image
	ocrLanguage lang.Language
	ttsLanguage lang.Language
	lastText    *TextResult
	lastAudio   *speech.Artifact
	lastScene   *SceneResult
	createdAt   time.Time
	updatedAt   time.Time
}

// Snapshot is a read-only copy of a session for rendering
type Snapshot struct {
	ID          string
	Image       *upload.Image
	OCRLanguage lang.Language
	TTSLanguage lang.Language
	LastText    *TextResult
	LastAudio   *speech.Artifact
	LastScene   *SceneResult
	HasAPIKey   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func newSession(id string, ocrLang, ttsLang lang.Language) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		ocrLanguage: ocrLang,
		ttsLanguage: ttsLang,
		createdAt:   now,
		updatedAt:   now,
	}
}

// snapshot must be called with s.mu held
func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:          s.ID,
		Image:       s.image,
		OCRLanguage: s.ocrLanguage,
		TTSLanguage: s.ttsLanguage,
		LastText:    s.lastText,
		LastAudio:   s.lastAudio,
		LastScene:   s.lastScene,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
}

// touch must be called with s.mu held
func (s *Session) touch() {
	s.updatedAt = time.Now()
}
