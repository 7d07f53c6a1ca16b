package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"VisionAssist/internal/ocr"
	"VisionAssist/internal/upload"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

// englishEngine skips validation so that the test only needs eng.traineddata
func englishEngine() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func renderText(t *testing.T, text string) *upload.Image {
	t.Helper()

	src := image.NewRGBA(image.Rect(0, 0, 80, 24))
	draw.Draw(src, src.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  src,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 17),
	}
	d.DrawString(text)

	// scale up 4x, Tesseract struggles with 13px glyphs
	img := image.NewRGBA(image.Rect(0, 0, 320, 96))
	for y := 0; y < 96; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, src.At(x/4, y/4))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	decoded, err := upload.Decode(buf.Bytes(), "stop.png", "image/png")
	require.NoError(t, err)
	return decoded
}

func TestRecognizeStopSign(t *testing.T) {
	ensureTesseractAvailable(t)

	x := ocr.NewExtractor(englishEngine())
	img := renderText(t, "STOP")

	first, err := x.Extract(context.Background(), img, "eng")
	require.NoError(t, err)
	require.Contains(t, strings.ToUpper(first), "STOP")

	second, err := x.Extract(context.Background(), img, "eng")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRecognizeBlankImage(t *testing.T) {
	ensureTesseractAvailable(t)

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	blank, err := upload.Decode(buf.Bytes(), "blank.png", "")
	require.NoError(t, err)

	text, err := ocr.NewExtractor(englishEngine()).Extract(context.Background(), blank, "eng")
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestNewEngineValidatesPrefix(t *testing.T) {
	_, err := NewEngine(Options{TessdataPrefix: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not accessible")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eng.traineddata"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hin.traineddata"), []byte("x"), 0o644))

	_, err = NewEngine(Options{TessdataPrefix: dir})
	require.Error(t, err)
	require.Contains(t, err.Error(), "tam, tel")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tam.traineddata"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tel.traineddata"), []byte("x"), 0o644))

	engine, err := NewEngine(Options{TessdataPrefix: dir})
	require.NoError(t, err)
	langs, err := engine.Languages()
	require.NoError(t, err)
	require.Equal(t, []string{"eng", "hin", "tam", "tel"}, langs)
}
