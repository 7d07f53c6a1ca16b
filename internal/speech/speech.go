// Package speech turns text into MP3 narration. GoogleTTS talks to the
// Google Translate text-to-speech endpoint; ArtifactStore owns the temporary
// files it produces and deletes them after a retention window.
package speech

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyText is returned for text that is blank after trimming
	ErrEmptyText = errors.New("no text to synthesize")
	// ErrUnsupportedLanguage is returned for codes other than en, hi, ta and te
	ErrUnsupportedLanguage = errors.New("unsupported speech language")
)

// Artifact is one synthesized audio file
type Artifact struct {
	ID        string
	Path      string
	Language  string
	CreatedAt time.Time
	Size      int64
}

// Synthesizer produces a new audio artifact per call
type Synthesizer interface {
	Synthesize(ctx context.Context, text, code string) (*Artifact, error)
}

// EngineError wraps network and service failures
type EngineError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *EngineError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("speech %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("speech %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
