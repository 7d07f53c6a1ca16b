// Package lang maps the language names shown to users onto the codes the
// OCR engine (ISO 639-2, as used by Tesseract traineddata files) and the
// speech service (BCP 47) expect.
package lang

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ErrUnsupported is returned by Parse for names outside the supported set
var ErrUnsupported = errors.New("unsupported language")

// Language is one selectable language
type Language struct {
	Display string
	OCRCode string
	tag     language.Tag
}

// TTSCode returns the BCP 47 code used by the speech service
func (l Language) TTSCode() string {
	return l.tag.String()
}

// IsZero reports whether l is the zero Language
func (l Language) IsZero() bool {
	return l.Display == ""
}

var (
	English = Language{Display: "English", OCRCode: "eng", tag: language.English}
	Hindi   = Language{Display: "Hindi", OCRCode: "hin", tag: language.Hindi}
	Tamil   = Language{Display: "Tamil", OCRCode: "tam", tag: language.Tamil}
	Telugu  = Language{Display: "Telugu", OCRCode: "tel", tag: language.Telugu}
)

// supported is ordered the way the selectors list it
var supported = []Language{English, Hindi, Tamil, Telugu}

// All returns the supported languages in display order
func All() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Parse resolves a display name (case-insensitive) to a Language
func Parse(display string) (Language, error) {
	name := strings.TrimSpace(display)
	for _, l := range supported {
		if strings.EqualFold(l.Display, name) {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("%w %q", ErrUnsupported, display)
}

// OCRCodes returns every supported OCR code
func OCRCodes() []string {
	codes := make([]string, 0, len(supported))
	for _, l := range supported {
		codes = append(codes, l.OCRCode)
	}
	return codes
}

// IsOCRCode reports whether code is a supported OCR code
func IsOCRCode(code string) bool {
	for _, l := range supported {
		if l.OCRCode == code {
			return true
		}
	}
	return false
}

// IsTTSCode reports whether code is a supported speech code
func IsTTSCode(code string) bool {
	for _, l := range supported {
		if l.TTSCode() == code {
			return true
		}
	}
	return false
}
