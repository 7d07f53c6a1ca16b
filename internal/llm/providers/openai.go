package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"VisionAssist/internal/logging"
)

// OpenAIProvider describes images with any OpenAI-compatible vision endpoint
type OpenAIProvider struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI-compatible provider
func NewOpenAIProvider(model, baseURL string, httpClient *http.Client) *OpenAIProvider {
	return &OpenAIProvider{model: model, baseURL: baseURL, httpClient: httpClient}
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Model() string { return o.model }

// Describe sends the prompt and the image as a data URL in one user message
func (o *OpenAIProvider) Describe(ctx context.Context, apiKey, prompt string, image []byte, mimeType string) (string, error) {
	clientConfig := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		clientConfig.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		clientConfig.HTTPClient = o.httpClient
	}
	client := openai.NewClientWithConfig(clientConfig)

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		}},
	}

	logging.Debug("Starting OpenAI request: model=%s, base_url=%s, image=%d bytes", o.model, clientConfig.BaseURL, len(image))

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
