package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"VisionAssist/internal/lang"
	"VisionAssist/internal/logging"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// maxChunkBytes caps one MP3 response body
const maxChunkBytes = 8 << 20

// GoogleOptions configures GoogleTTS
type GoogleOptions struct {
	BaseURL    string
	TempDir    string
	HTTPClient *http.Client
}

// GoogleTTS synthesizes speech with the Google Translate TTS endpoint
type GoogleTTS struct {
	baseURL string
	tempDir string
	client  *http.Client
}

// NewGoogleTTS creates a GoogleTTS client
func NewGoogleTTS(opts GoogleOptions) *GoogleTTS {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleTTS{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		tempDir: opts.TempDir,
		client:  client,
	}
}

// Synthesize writes the narration of text to a new temporary MP3 file
func (g *GoogleTTS) Synthesize(ctx context.Context, text, code string) (*Artifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if !lang.IsTTSCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}

	chunks := Tokenize(text)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	f, err := os.CreateTemp(g.tempDir, "speech-*.mp3")
	if err != nil {
		return nil, &EngineError{Op: "create file", Err: err}
	}
	path := f.Name()

	size, err := g.writeChunks(ctx, f, chunks, code)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = &EngineError{Op: "write file", Err: closeErr}
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	logging.Debug("Synthesized %d chunk(s), %d bytes of %s speech to %s", len(chunks), size, code, path)

	return &Artifact{
		ID:        uuid.NewString(),
		Path:      path,
		Language:  code,
		CreatedAt: time.Now(),
		Size:      size,
	}, nil
}

func (g *GoogleTTS) writeChunks(ctx context.Context, w io.Writer, chunks []string, code string) (int64, error) {
	var total int64
	for idx, chunk := range chunks {
		n, err := g.fetchChunk(ctx, w, chunk, code, idx, len(chunks))
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (g *GoogleTTS) fetchChunk(ctx context.Context, w io.Writer, chunk, code string, idx, total int) (int64, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", code)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(len([]rune(chunk))))
	q.Set("client", "tw-ob")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return 0, &EngineError{Op: "build request", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", g.baseURL+"/")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, &EngineError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &EngineError{
			Op:         "request",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("chunk %d/%d rejected: %s", idx+1, total, strings.TrimSpace(string(body))),
		}
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, maxChunkBytes))
	if err != nil {
		return n, &EngineError{Op: "read response", Err: err}
	}
	if n == 0 {
		return 0, &EngineError{Op: "read response", Err: fmt.Errorf("chunk %d/%d returned no audio", idx+1, total)}
	}
	return n, nil
}
