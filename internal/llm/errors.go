package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ErrorKind classifies scene description failures
type ErrorKind string

const (
	KindAuth    ErrorKind = "auth"
	KindQuota   ErrorKind = "quota"
	KindNetwork ErrorKind = "network"
	KindEmpty   ErrorKind = "empty"
	KindUnknown ErrorKind = "unknown"
)

// ErrMissingAPIKey is wrapped in an auth APIError when no key is configured
var ErrMissingAPIKey = errors.New("no API key configured")

// APIError is returned for every failed scene description call
type APIError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error (HTTP %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// newAPIError classifies err, keeping an existing APIError untouched
func newAPIError(provider string, err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	status := statusCode(err)
	return &APIError{Kind: classify(err, status), Provider: provider, StatusCode: status, Err: err}
}

// statusCode digs the HTTP status out of the provider SDK errors
func statusCode(err error) int {
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code
	}
	var genaiPtr *genai.APIError
	if errors.As(err, &genaiPtr) && genaiPtr != nil {
		return genaiPtr.Code
	}
	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) {
		return openaiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classify(err error, status int) ErrorKind {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return KindAuth
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindQuota
	case status == http.StatusBadRequest && isAPIKeyMessage(err):
		// Gemini answers 400 INVALID_ARGUMENT for a malformed key
		return KindAuth
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindNetwork
	}
	if status >= 500 {
		return KindNetwork
	}

	switch {
	case isAPIKeyMessage(err):
		return KindAuth
	case isQuotaMessage(err):
		return KindQuota
	case isNetworkMessage(err):
		return KindNetwork
	}
	return KindUnknown
}

func containsAny(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// isAPIKeyMessage checks if the error is related to API key authentication/authorization
func isAPIKeyMessage(err error) bool {
	return containsAny(err, []string{
		"api key not valid",
		"invalid api key",
		"incorrect api key",
		"api_key_invalid",
		"unauthorized",
		"unauthenticated",
		"permission_denied",
		"authentication",
		"invalid token",
	})
}

func isQuotaMessage(err error) bool {
	return containsAny(err, []string{
		"resource_exhausted",
		"quota",
		"rate limit",
		"insufficient funds",
		"billing",
	})
}

func isNetworkMessage(err error) bool {
	return containsAny(err, []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"unavailable",
		"eof",
	})
}
