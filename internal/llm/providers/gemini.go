// Package providers holds the remote model backends used for scene
// description. Each provider sends one prompt and one inline image per call
// and returns the model's text; error classification is left to the caller.
package providers

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"VisionAssist/internal/logging"
)

// GeminiProvider describes images with the Gemini API
type GeminiProvider struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiProvider creates a new Gemini provider. baseURL may be empty.
func NewGeminiProvider(model, baseURL string, httpClient *http.Client) *GeminiProvider {
	return &GeminiProvider{model: model, baseURL: baseURL, httpClient: httpClient}
}

func (g *GeminiProvider) Name() string { return "gemini" }

func (g *GeminiProvider) Model() string { return g.model }

// Describe sends prompt and the image as a single user turn
func (g *GeminiProvider) Describe(ctx context.Context, apiKey, prompt string, image []byte, mimeType string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.baseURL},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	logging.Debug("Starting Gemini request: model=%s, image=%d bytes (%s)", g.model, len(image), mimeType)

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	return resp.Text(), nil
}
