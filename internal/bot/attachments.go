package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"VisionAssist/internal/assist"
	"VisionAssist/internal/logging"
)

// downloadAttachment fetches an attached image from Discord's CDN
func (b *Bot) downloadAttachment(ctx context.Context, att *discordgo.MessageAttachment) ([]byte, string, error) {
	fail := func(err error) error {
		return &assist.Error{Kind: assist.KindEngine, Op: "Failed to download image", Err: err}
	}

	if b.maxImageBytes > 0 && int64(att.Size) > b.maxImageBytes {
		return nil, "", &assist.Error{
			Kind: assist.KindMissingInput,
			Err:  fmt.Errorf("image too large: %d bytes (max %d bytes)", att.Size, b.maxImageBytes),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, "", fail(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", "VisionAssist-Bot/1.0")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fail(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logging.Warn("Failed to close response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fail(fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	body := io.Reader(resp.Body)
	if b.maxImageBytes > 0 {
		body = io.LimitReader(resp.Body, b.maxImageBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fail(fmt.Errorf("failed to read image data: %w", err))
	}
	if b.maxImageBytes > 0 && int64(len(data)) > b.maxImageBytes {
		return nil, "", &assist.Error{
			Kind: assist.KindMissingInput,
			Err:  fmt.Errorf("image too large (max %d bytes)", b.maxImageBytes),
		}
	}

	contentType := att.ContentType
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	return data, contentType, nil
}
