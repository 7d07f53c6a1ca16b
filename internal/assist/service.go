// Package assist is the orchestration core. It owns user sessions and
// implements the four user actions (extract text, read aloud, describe the
// scene, update the API key) on top of the OCR, speech and scene description
// adapters. Every failure is returned as *Error and rendered with Present.
package assist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"VisionAssist/internal/credentials"
	"VisionAssist/internal/lang"
	"VisionAssist/internal/logging"
	"VisionAssist/internal/metrics"
	"VisionAssist/internal/speech"
	"VisionAssist/internal/storage"
	"VisionAssist/internal/upload"
)

// Action names used in logs and metrics
const (
	ActionUpload        = "upload"
	ActionExtractText   = "extract_text"
	ActionReadAloud     = "read_aloud"
	ActionDescribeScene = "describe_scene"
	ActionUpdateAPIKey  = "update_api_key"
	ActionLanguages     = "select_languages"
)

// TextExtractor is the OCR adapter
type TextExtractor interface {
	Extract(ctx context.Context, img *upload.Image, code string) (string, error)
}

// SceneDescriber is the scene description adapter
type SceneDescriber interface {
	Describe(ctx context.Context, apiKey string, imageBytes []byte, mimeType string) (string, error)
}

// PreferenceStore persists language selections across restarts
type PreferenceStore interface {
	Get(ctx context.Context, sessionID string) (storage.LanguagePreferences, bool)
	Set(ctx context.Context, sessionID string, prefs storage.LanguagePreferences) error
}

// keyForgetter is implemented by session-scoped credential stores
type keyForgetter interface {
	Forget(ctx context.Context, sessionID string) error
}

// Dependencies are the adapters the service drives. Preferences and
// Metrics may be nil.
type Dependencies struct {
	OCR         TextExtractor
	Speech      speech.Synthesizer
	Artifacts   *speech.ArtifactStore
	Scene       SceneDescriber
	Credentials credentials.Store
	Preferences PreferenceStore
	Metrics     *metrics.Registry
}

// Options tune session handling
type Options struct {
	DefaultOCRLanguage lang.Language
	DefaultTTSLanguage lang.Language
	MaxSessions        int
	SessionTTL         time.Duration
	// ForgetKeysOnEvict drops a session's own API key when the session ends
	ForgetKeysOnEvict bool
}

// Service implements the user actions
type Service struct {
	deps     Dependencies
	opts     Options
	sessions *expirable.LRU[string, *Session]
	createMu sync.Mutex
}

// NewService creates the service
func NewService(deps Dependencies, opts Options) *Service {
	if opts.DefaultOCRLanguage.IsZero() {
		opts.DefaultOCRLanguage = lang.English
	}
	if opts.DefaultTTSLanguage.IsZero() {
		opts.DefaultTTSLanguage = lang.English
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}

	s := &Service{deps: deps, opts: opts}
	s.sessions = expirable.NewLRU[string, *Session](opts.MaxSessions, s.onEvict, opts.SessionTTL)
	return s
}

// onEvict runs with the cache lock held, so the session is retired in the
// background where it can wait for a running action to finish
func (s *Service) onEvict(id string, sess *Session) {
	go s.retire(id, sess)
}

func (s *Service) retire(id string, sess *Session) {
	ctx := context.Background()
	sess.mu.Lock()
	audio := sess.lastAudio
	sess.lastAudio = nil
	sess.image = nil
	sess.mu.Unlock()

	if audio != nil && s.deps.Artifacts != nil {
		if err := s.deps.Artifacts.Release(ctx, audio.ID); err != nil {
			logging.Warn("Failed to release audio of session %s: %v", id, err)
		}
	}
	if s.opts.ForgetKeysOnEvict {
		if f, ok := s.deps.Credentials.(keyForgetter); ok {
			if err := f.Forget(ctx, id); err != nil {
				logging.Warn("Failed to forget API key of session %s: %v", id, err)
			}
		}
	}
	s.deps.Metrics.Inc(ctx, metrics.SessionsEvicted, nil, 1)
	logging.Debug("Session %s retired", id)
}

// session returns the session for id, creating it on first use
func (s *Service) session(ctx context.Context, id string) *Session {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	if sess, ok := s.sessions.Get(id); ok {
		// Add renews the expiry
		s.sessions.Add(id, sess)
		return sess
	}
	// drop an expired entry that the cache has not reaped yet
	s.sessions.Remove(id)

	ocrLang, ttsLang := s.opts.DefaultOCRLanguage, s.opts.DefaultTTSLanguage
	if s.deps.Preferences != nil {
		if prefs, ok := s.deps.Preferences.Get(ctx, id); ok {
			if l, err := lang.Parse(prefs.OCRLanguage); err == nil {
				ocrLang = l
			}
			if l, err := lang.Parse(prefs.TTSLanguage); err == nil {
				ttsLang = l
			}
		}
	}

	sess := newSession(id, ocrLang, ttsLang)
	s.sessions.Add(id, sess)
	s.deps.Metrics.Inc(ctx, metrics.SessionsCreated, nil, 1)
	return sess
}

func (s *Service) record(ctx context.Context, action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(Classify(err))
		logging.Debug("Action %s failed: %v", action, err)
	}
	s.deps.Metrics.Action(ctx, action, outcome)
}

// Session returns a snapshot of the session, creating it if needed
func (s *Service) Session(ctx context.Context, id string) Snapshot {
	sess := s.session(ctx, id)
	sess.mu.Lock()
	snap := sess.snapshot()
	sess.mu.Unlock()

	if s.deps.Credentials != nil {
		_, snap.HasAPIKey = s.deps.Credentials.APIKey(ctx, id)
	}
	return snap
}

// Upload decodes an image and makes it the session's current image. The
// results derived from the previous image are discarded.
func (s *Service) Upload(ctx context.Context, id string, data []byte, filename, mimeType string) (img *upload.Image, err error) {
	defer func() { s.record(ctx, ActionUpload, err) }()

	decoded, decodeErr := upload.Decode(data, filename, mimeType)
	if decodeErr != nil {
		logging.Info("Rejected upload %q: %v", filename, decodeErr)
		if errors.Is(decodeErr, upload.ErrEmpty) {
			return nil, missingInput(msgNoImage)
		}
		return nil, &Error{Kind: KindMissingInput, Op: "Upload", Err: fmt.Errorf("%s (%w)", msgBadImage, decodeErr)}
	}

	sess := s.session(ctx, id)
	sess.mu.Lock()
	previous := sess.lastAudio
	sess.image = decoded
	sess.lastText = nil
	sess.lastScene = nil
	sess.lastAudio = nil
	sess.touch()
	sess.mu.Unlock()

	s.releaseAudio(ctx, previous)
	return decoded, nil
}

// ClearImage removes the session's image and everything derived from it
func (s *Service) ClearImage(ctx context.Context, id string) {
	sess := s.session(ctx, id)
	sess.mu.Lock()
	previous := sess.lastAudio
	sess.image = nil
	sess.lastText = nil
	sess.lastScene = nil
	sess.lastAudio = nil
	sess.touch()
	sess.mu.Unlock()

	s.releaseAudio(ctx, previous)
}

// SelectLanguages sets the OCR and TTS languages by display name
func (s *Service) SelectLanguages(ctx context.Context, id, ocrDisplay, ttsDisplay string) (err error) {
	defer func() { s.record(ctx, ActionLanguages, err) }()

	ocrLang, err := lang.Parse(ocrDisplay)
	if err != nil {
		return &Error{Kind: KindConfiguration, Op: "Select OCR language", Err: err}
	}
	ttsLang, err := lang.Parse(ttsDisplay)
	if err != nil {
		return &Error{Kind: KindConfiguration, Op: "Select TTS language", Err: err}
	}

	sess := s.session(ctx, id)
	sess.mu.Lock()
	sess.ocrLanguage = ocrLang
	sess.ttsLanguage = ttsLang
	sess.touch()
	sess.mu.Unlock()

	if s.deps.Preferences != nil {
		prefs := storage.LanguagePreferences{OCRLanguage: ocrLang.Display, TTSLanguage: ttsLang.Display}
		if err := s.deps.Preferences.Set(ctx, id, prefs); err != nil {
			logging.Warn("Failed to persist language preferences of session %s: %v", id, err)
		}
	}
	return nil
}

// ExtractText runs OCR on the session's image with its OCR language
func (s *Service) ExtractText(ctx context.Context, id string) (result *TextResult, err error) {
	defer func() { s.record(ctx, ActionExtractText, err) }()

	sess := s.session(ctx, id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.image == nil {
		return nil, missingInput(msgNoImage)
	}

	text, err := s.deps.OCR.Extract(ctx, sess.image, sess.ocrLanguage.OCRCode)
	if err != nil {
		return nil, wrap("Error during OCR", err)
	}

	result = &TextResult{Text: text, Language: sess.ocrLanguage}
	sess.lastText = result
	sess.touch()
	return result, nil
}

// ReadAloud extracts the text of the session's image and narrates it in the
// session's TTS language. Blank text is reported as missing input and the
// synthesizer is not called. The session's previous audio is released.
func (s *Service) ReadAloud(ctx context.Context, id string) (artifact *speech.Artifact, err error) {
	defer func() { s.record(ctx, ActionReadAloud, err) }()

	sess := s.session(ctx, id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.image == nil {
		return nil, missingInput(msgNoImage)
	}

	text, err := s.deps.OCR.Extract(ctx, sess.image, sess.ocrLanguage.OCRCode)
	if err != nil {
		return nil, wrap("Error during OCR or TTS", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, missingInput(msgNoText)
	}
	sess.lastText = &TextResult{Text: text, Language: sess.ocrLanguage}

	artifact, err = s.deps.Speech.Synthesize(ctx, text, sess.ttsLanguage.TTSCode())
	if err != nil {
		return nil, wrap("Error during OCR or TTS", err)
	}
	if s.deps.Artifacts != nil {
		if err := s.deps.Artifacts.Register(ctx, artifact); err != nil {
			return nil, &Error{Kind: KindEngine, Op: "Error during OCR or TTS", Err: err}
		}
	}

	previous := sess.lastAudio
	sess.lastAudio = artifact
	sess.touch()
	s.releaseAudio(ctx, previous)
	return artifact, nil
}

// DescribeScene sends the session's image to the scene description model
// with the session's API key. Without an image no request is made.
func (s *Service) DescribeScene(ctx context.Context, id string) (result *SceneResult, err error) {
	defer func() { s.record(ctx, ActionDescribeScene, err) }()

	sess := s.session(ctx, id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.image == nil {
		return nil, missingInput(msgNoImage)
	}

	key, _ := s.deps.Credentials.APIKey(ctx, id)
	text, err := s.deps.Scene.Describe(ctx, key, sess.image.Data, sess.image.MIMEType)
	if err != nil {
		return nil, wrap("Scene description failed", err)
	}

	result = &SceneResult{Text: text}
	sess.lastScene = result
	sess.touch()
	return result, nil
}

// UpdateAPIKey stores a new API key for the session (or for everyone when
// credentials are shared)
func (s *Service) UpdateAPIKey(ctx context.Context, id, key string) (err error) {
	defer func() { s.record(ctx, ActionUpdateAPIKey, err) }()

	if err := s.deps.Credentials.Update(ctx, id, key); err != nil {
		return &Error{Kind: KindConfiguration, Op: "Error while updating API key", Err: err}
	}
	s.deps.Metrics.Inc(ctx, metrics.APIKeyUpdates, nil, 1)
	return nil
}

// ExtractedText returns the last OCR result of the session for download
func (s *Service) ExtractedText(ctx context.Context, id string) (*TextResult, error) {
	sess := s.session(ctx, id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.lastText == nil {
		return nil, missingInput(msgNoTextToSave)
	}
	return sess.lastText, nil
}

// OpenAudio opens the session's last audio file. The caller closes it.
func (s *Service) OpenAudio(ctx context.Context, id string) (*os.File, *speech.Artifact, error) {
	sess := s.session(ctx, id)
	sess.mu.Lock()
	audio := sess.lastAudio
	sess.mu.Unlock()

	if audio == nil || s.deps.Artifacts == nil {
		return nil, nil, missingInput(msgNoAudio)
	}
	f, a, err := s.deps.Artifacts.Open(audio.ID)
	if errors.Is(err, speech.ErrArtifactNotFound) {
		return nil, nil, missingInput(msgNoAudio)
	}
	if err != nil {
		return nil, nil, &Error{Kind: KindEngine, Op: "Audio", Err: err}
	}
	return f, a, nil
}

// SessionCount returns the number of live sessions
func (s *Service) SessionCount() int {
	return s.sessions.Len()
}

// Close ends every session
func (s *Service) Close() {
	s.sessions.Purge()
}

func (s *Service) releaseAudio(ctx context.Context, a *speech.Artifact) {
	if a == nil || s.deps.Artifacts == nil {
		return
	}
	if err := s.deps.Artifacts.Release(ctx, a.ID); err != nil {
		logging.Warn("Failed to release audio %s: %v", a.ID, err)
	}
}
