// Package tesseract implements ocr.Engine on top of the Tesseract library
// through gosseract.
package tesseract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"VisionAssist/internal/lang"
	"VisionAssist/internal/ocr"
)

// Options configures the engine
type Options struct {
	// TessdataPrefix is the directory holding <code>.traineddata files.
	// Empty means the library default (TESSDATA_PREFIX or the build path).
	TessdataPrefix string
}

// Engine implements ocr.Engine using one gosseract client per call
type Engine struct {
	prefix        string
	clientFactory func() *gosseract.Client
}

// NewEngine validates the language data for every supported OCR code and
// returns a ready engine. A missing directory or traineddata file is
// reported here rather than on the first request.
func NewEngine(opts Options) (*Engine, error) {
	available, err := availableLanguages(opts.TessdataPrefix)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, code := range lang.OCRCodes() {
		if !available[code] {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		where := opts.TessdataPrefix
		if where == "" {
			where = "the default tessdata directory"
		}
		return nil, fmt.Errorf("missing Tesseract language data in %s: %s (install %s.traineddata)",
			where, strings.Join(missing, ", "), strings.Join(missing, ".traineddata, "))
	}

	return &Engine{prefix: opts.TessdataPrefix, clientFactory: gosseract.NewClient}, nil
}

func availableLanguages(prefix string) (map[string]bool, error) {
	var names []string
	if prefix == "" {
		langs, err := gosseract.GetAvailableLanguages()
		if err != nil {
			return nil, fmt.Errorf("failed to list Tesseract languages: %w", err)
		}
		names = langs
	} else {
		info, err := os.Stat(prefix)
		if err != nil {
			return nil, fmt.Errorf("tessdata_prefix %q is not accessible: %w", prefix, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("tessdata_prefix %q is not a directory", prefix)
		}
		files, err := filepath.Glob(filepath.Join(prefix, "*.traineddata"))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, f := range files {
			names = append(names, strings.TrimSuffix(filepath.Base(f), ".traineddata"))
		}
	}

	available := make(map[string]bool, len(names))
	for _, n := range names {
		available[n] = true
	}
	return available, nil
}

func (e *Engine) Name() string { return "tesseract" }

// Languages returns the sorted language codes found in the data directory
func (e *Engine) Languages() ([]string, error) {
	available, err := availableLanguages(e.prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(available))
	for code := range available {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

// Recognize runs OCR on an encoded image
func (e *Engine) Recognize(ctx context.Context, data []byte, code string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if e.prefix != "" {
		if err := c.SetTessdataPrefix(e.prefix); err != nil {
			return "", &ocr.EngineError{Op: "set tessdata prefix", Err: err}
		}
	}
	if err := c.SetLanguage(code); err != nil {
		return "", &ocr.EngineError{Op: "set language", Err: err}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", &ocr.EngineError{Op: "set image", Err: err}
	}

	text, err := c.Text()
	if err != nil {
		return "", &ocr.EngineError{Op: "recognize text", Err: err}
	}
	return text, nil
}
