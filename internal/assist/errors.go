package assist

import (
	"errors"
	"fmt"

	"VisionAssist/internal/credentials"
	"VisionAssist/internal/lang"
	"VisionAssist/internal/llm"
	"VisionAssist/internal/ocr"
	"VisionAssist/internal/speech"
	"VisionAssist/internal/upload"
)

// Kind is the category of a failed action
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindMissingInput  Kind = "missing_input"
	KindEngine        Kind = "engine"
	KindAPI           Kind = "api"
)

// User-facing texts for missing input
const (
	msgNoImage      = "Please upload an image first."
	msgNoText       = "No text found to read."
	msgBadImage     = "Please upload a JPG, JPEG or PNG image."
	msgInvalidKey   = "Please enter a valid API key"
	msgNoTextToSave = "Extract text from the image first."
	msgNoAudio      = "Read the text aloud first."
)

// Error is returned by every Service action
type Error struct {
	Kind Kind
	// Op names the step that failed, it prefixes the user message
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func missingInput(text string) *Error {
	return &Error{Kind: KindMissingInput, Err: errors.New(text)}
}

// wrap classifies err and attaches the failing step
func wrap(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: Classify(err), Op: op, Err: err}
}

// Classify maps an adapter error onto the error taxonomy
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	var apiErr *llm.APIError
	var ocrErr *ocr.EngineError
	var speechErr *speech.EngineError
	switch {
	case errors.As(err, &apiErr):
		return KindAPI
	case errors.Is(err, credentials.ErrEmptyKey):
		return KindConfiguration
	case errors.Is(err, upload.ErrEmpty), errors.Is(err, upload.ErrUnsupportedType), errors.Is(err, upload.ErrDecode),
		errors.Is(err, ocr.ErrNoImage), errors.Is(err, speech.ErrEmptyText):
		return KindMissingInput
	case errors.Is(err, lang.ErrUnsupported):
		return KindConfiguration
	case errors.As(err, &ocrErr), errors.As(err, &speechErr),
		errors.Is(err, ocr.ErrUnsupportedLanguage), errors.Is(err, speech.ErrUnsupportedLanguage):
		return KindEngine
	}
	return KindEngine
}
