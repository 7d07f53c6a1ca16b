// Package ocr extracts text from uploaded images. The recognition itself is
// delegated to an Engine; this package validates the language code, converts
// engine faults into *EngineError and never lets a panic cross its boundary.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"VisionAssist/internal/lang"
	"VisionAssist/internal/logging"
	"VisionAssist/internal/upload"
)

// ErrUnsupportedLanguage is returned when the code is not one of the
// supported OCR codes. The engine is not invoked.
var ErrUnsupportedLanguage = errors.New("unsupported OCR language")

// ErrNoImage is returned when Extract is called without an image
var ErrNoImage = errors.New("no image to read")

// Engine recognizes text in an encoded image (PNG or JPEG bytes)
type Engine interface {
	Name() string
	Recognize(ctx context.Context, data []byte, code string) (string, error)
}

// EngineError wraps any fault raised by the engine. The underlying message
// is preserved.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("ocr %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Extractor is the OCR adapter used by the rest of the application
type Extractor struct {
	engine Engine
}

// NewExtractor creates an extractor backed by engine
func NewExtractor(engine Engine) *Extractor {
	return &Extractor{engine: engine}
}

// Extract returns the text found in img using the language identified by
// code (eng, hin, tam or tel). An image without text yields "" and no error.
func (x *Extractor) Extract(ctx context.Context, img *upload.Image, code string) (text string, err error) {
	if !lang.IsOCRCode(code) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	if img == nil || len(img.Data) == 0 {
		return "", ErrNoImage
	}
	if err := ctx.Err(); err != nil {
		return "", &EngineError{Op: "recognize", Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("OCR engine %s panicked: %v", x.engine.Name(), r)
			text, err = "", &EngineError{Op: "recognize", Err: fmt.Errorf("engine panic: %v", r)}
		}
	}()

	start := time.Now()
	out, recErr := x.engine.Recognize(ctx, img.Data, code)
	if recErr != nil {
		var engineErr *EngineError
		if errors.As(recErr, &engineErr) {
			return "", engineErr
		}
		return "", &EngineError{Op: "recognize", Err: recErr}
	}

	text = strings.TrimSpace(out)
	logging.Debug("OCR (%s, %s) extracted %d characters in %v", x.engine.Name(), code, len(text), time.Since(start))
	return text, nil
}
