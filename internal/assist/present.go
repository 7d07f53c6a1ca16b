package assist

import (
	"errors"
	"fmt"

	"VisionAssist/internal/credentials"
	"VisionAssist/internal/llm"
)

// Severity decides how a message is rendered
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Message is what a front-end shows after an action
type Message struct {
	Severity Severity
	Text     string
}

// Success returns a success message
func Success(text string) Message {
	return Message{Severity: SeveritySuccess, Text: text}
}

// Present converts any action error into the message shown to the user.
// Missing input is a warning; everything else is an error.
func Present(err error) Message {
	if err == nil {
		return Message{}
	}

	var e *Error
	if !errors.As(err, &e) {
		e = wrap("", err)
	}

	switch e.Kind {
	case KindMissingInput:
		return Message{Severity: SeverityWarning, Text: e.Err.Error()}
	case KindConfiguration:
		if errors.Is(e, credentials.ErrEmptyKey) {
			return Message{Severity: SeverityWarning, Text: msgInvalidKey}
		}
		return Message{Severity: SeverityError, Text: prefixed(e.Op, "Configuration error", e.Err)}
	case KindAPI:
		return Message{Severity: SeverityError, Text: apiText(e)}
	default:
		return Message{Severity: SeverityError, Text: prefixed(e.Op, "Error", e.Err)}
	}
}

func prefixed(op, fallback string, err error) string {
	if op == "" {
		op = fallback
	}
	return fmt.Sprintf("%s: %v", op, err)
}

func apiText(e *Error) string {
	var apiErr *llm.APIError
	if !errors.As(e, &apiErr) {
		return prefixed(e.Op, "Scene description failed", e.Err)
	}

	switch apiErr.Kind {
	case llm.KindAuth:
		if errors.Is(apiErr, llm.ErrMissingAPIKey) {
			return "Scene description needs an API key. Enter your Gemini API key first."
		}
		return "Scene description failed: the API key was rejected. Check or update your Gemini API key."
	case llm.KindQuota:
		return "Scene description failed: the API quota is exhausted. Try again later."
	case llm.KindNetwork:
		return "Scene description failed: the AI service could not be reached. Try again later."
	case llm.KindEmpty:
		return "The AI service returned no description for this image."
	default:
		return prefixed(e.Op, "Scene description failed", apiErr.Err)
	}
}
