// Package upload turns an uploaded file into an Image: the raw bytes that are
// forwarded to remote services, their MIME type and the decoded bitmap used
// for OCR and previews.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

var (
	ErrEmpty           = errors.New("uploaded file is empty")
	ErrUnsupportedType = errors.New("unsupported image type (expected JPG, JPEG or PNG)")
	ErrDecode          = errors.New("image could not be decoded")
)

// MaxPixels bounds width*height of an accepted image. The header is checked
// before decoding so a small compressed file cannot expand into gigabytes.
const MaxPixels = 40_000_000

// Extensions lists the accepted file extensions
var Extensions = []string{"jpg", "jpeg", "png"}

// Image is an uploaded image. It is never modified after Decode returns.
type Image struct {
	Data     []byte
	MIMEType string
	Filename string
	Bitmap   image.Image
	Width    int
	Height   int
}

// Decode validates and decodes an uploaded file. The MIME type is sniffed
// from the content; declaredMIME is only used in the error message when the
// content is not an accepted image.
func Decode(data []byte, filename, declaredMIME string) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	mimeType := http.DetectContentType(data)
	if mimeType != MIMEJPEG && mimeType != MIMEPNG {
		return nil, fmt.Errorf("%w: got %s (declared %q, file %q)", ErrUnsupportedType, mimeType, declaredMIME, filepath.Base(filename))
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" && !acceptedExtension(ext) {
		return nil, fmt.Errorf("%w: extension %q", ErrUnsupportedType, ext)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	bitmap, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	raw := make([]byte, len(data))
	copy(raw, data)

	bounds := bitmap.Bounds()
	return &Image{
		Data:     raw,
		MIMEType: mimeType,
		Filename: filepath.Base(filename),
		Bitmap:   bitmap,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

func acceptedExtension(ext string) bool {
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Thumbnail returns the image scaled so that its longest side is at most
// maxSide pixels. Smaller images are returned unchanged.
func (img *Image) Thumbnail(maxSide int) image.Image {
	if maxSide <= 0 || (img.Width <= maxSide && img.Height <= maxSide) {
		return img.Bitmap
	}

	w, h := img.Width, img.Height
	if w >= h {
		h = max(1, h*maxSide/w)
		w = maxSide
	} else {
		w = max(1, w*maxSide/h)
		h = maxSide
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img.Bitmap, img.Bitmap.Bounds(), draw.Over, nil)
	return dst
}

// PreviewPNG encodes Thumbnail(maxSide) as PNG
func (img *Image) PreviewPNG(maxSide int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Thumbnail(maxSide)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
