package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"VisionAssist/internal/upload"
)

type fakeEngine struct {
	text  string
	err   error
	panic bool
	calls int
	codes []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, _ []byte, code string) (string, error) {
	f.calls++
	f.codes = append(f.codes, code)
	if f.panic {
		panic("boom")
	}
	return f.text, f.err
}

var testImage = &upload.Image{Data: []byte{1, 2, 3}, MIMEType: upload.MIMEPNG}

func TestExtractSupportedCodes(t *testing.T) {
	engine := &fakeEngine{text: "  STOP \n"}
	x := NewExtractor(engine)

	for _, code := range []string{"eng", "hin", "tam", "tel"} {
		text, err := x.Extract(context.Background(), testImage, code)
		require.NoError(t, err)
		require.Equal(t, "STOP", text)
	}
	require.Equal(t, []string{"eng", "hin", "tam", "tel"}, engine.codes)
}

func TestExtractNoTextIsNotAnError(t *testing.T) {
	x := NewExtractor(&fakeEngine{text: "\n\n"})
	text, err := x.Extract(context.Background(), testImage, "eng")
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestExtractRejectsUnsupportedCode(t *testing.T) {
	engine := &fakeEngine{}
	x := NewExtractor(engine)

	for _, code := range []string{"English", "en", "fra", ""} {
		_, err := x.Extract(context.Background(), testImage, code)
		require.ErrorIs(t, err, ErrUnsupportedLanguage)
	}
	require.Zero(t, engine.calls)
}

func TestExtractWrapsEngineFaults(t *testing.T) {
	cause := errors.New("Failed loading language 'tam'")
	x := NewExtractor(&fakeEngine{err: cause})

	_, err := x.Extract(context.Background(), testImage, "tam")
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "Failed loading language 'tam'")
}

func TestExtractRecoversPanics(t *testing.T) {
	x := NewExtractor(&fakeEngine{panic: true})

	_, err := x.Extract(context.Background(), testImage, "eng")
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	require.Contains(t, err.Error(), "boom")
}

func TestExtractWithoutImage(t *testing.T) {
	engine := &fakeEngine{}
	_, err := NewExtractor(engine).Extract(context.Background(), nil, "eng")
	require.ErrorIs(t, err, ErrNoImage)
	require.Zero(t, engine.calls)
}
