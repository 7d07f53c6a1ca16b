// Package llm describes scenes with a hosted multimodal model. Client sends
// ScenePrompt with one image and turns every failure into *APIError.
// Nothing is retried.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"time"

	"VisionAssist/internal/config"
	"VisionAssist/internal/llm/providers"
	"VisionAssist/internal/logging"
	inet "VisionAssist/internal/net"
)

// Provider is one remote model backend
type Provider interface {
	Name() string
	Model() string
	Describe(ctx context.Context, apiKey, prompt string, image []byte, mimeType string) (string, error)
}

// Client handles communication with the scene description provider
type Client struct {
	provider Provider
	timeout  time.Duration
}

// NewClient creates a client for the configured provider
func NewClient(cfg *config.Config) (*Client, error) {
	httpClient := inet.NewOptimizedClient(cfg.GetSceneTimeout())

	var provider Provider
	switch cfg.Scene.Provider {
	case config.ProviderGemini:
		provider = providers.NewGeminiProvider(cfg.Scene.Model, cfg.Scene.BaseURL, httpClient)
	case config.ProviderOpenAI:
		provider = providers.NewOpenAIProvider(cfg.Scene.Model, cfg.Scene.BaseURL, httpClient)
	default:
		return nil, fmt.Errorf("unknown scene provider: %s", cfg.Scene.Provider)
	}

	logging.Info("Scene description provider: %s (model %s)", provider.Name(), provider.Model())
	return NewClientWithProvider(provider, cfg.GetSceneTimeout()), nil
}

// NewClientWithProvider wraps an existing provider
func NewClientWithProvider(provider Provider, timeout time.Duration) *Client {
	return &Client{provider: provider, timeout: timeout}
}

// ProviderName returns the name of the configured provider
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Describe returns the model's description of the image verbatim. A blank
// apiKey fails with an auth APIError before any request is made.
func (c *Client) Describe(ctx context.Context, apiKey string, imageBytes []byte, mimeType string) (string, error) {
	name := c.provider.Name()
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", &APIError{Kind: KindAuth, Provider: name, Err: ErrMissingAPIKey}
	}
	if len(imageBytes) == 0 {
		return "", &APIError{Kind: KindUnknown, Provider: name, Err: errors.New("no image data")}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.provider.Describe(ctx, apiKey, ScenePrompt, imageBytes, mimeType)
	if err != nil {
		apiErr := newAPIError(name, err)
		logging.Warn("Scene description failed after %v: %v", time.Since(start), apiErr)
		return "", apiErr
	}
	if strings.TrimSpace(text) == "" {
		return "", &APIError{Kind: KindEmpty, Provider: name, Err: errors.New("model returned no text")}
	}

	logging.Debug("Scene description (%s) returned %d characters in %v", name, len(text), time.Since(start))
	return text, nil
}

// CheckConnectivity describes a tiny generated image with apiKey
func (c *Client) CheckConnectivity(ctx context.Context, apiKey string) error {
	_, err := c.Describe(ctx, apiKey, probeImage(), "image/png")
	return err
}

func probeImage() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
