package web

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"VisionAssist/internal/assist"
	"VisionAssist/internal/lang"
)

const (
	textFilename   = "extracted_text.txt"
	speechFilename = "speech.mp3"
	previewSide    = 480
)

// Success texts shown after an action
const (
	msgUploaded       = "Image uploaded."
	msgCleared        = "Image removed."
	msgLanguages      = "Languages updated."
	msgSpeech         = "Speech generated!"
	msgKeyUpdated     = "API key updated successfully"
	msgNoTextDetected = "No text was detected in the image."
)

const (
	csrfField      = "csrf"
	csrfContextKey = "csrf"
)

// pageData is everything index.html renders
type pageData struct {
	CSRFToken    string
	Message      assist.Message
	Languages    []lang.Language
	OCRLanguage  string
	TTSLanguage  string
	HasAPIKey    bool
	HasImage     bool
	ImageName    string
	ImageVersion int64
	ShowText     bool
	Text         string
	ShowAudio    bool
	AudioID      string
	Scene        string
}

func (s *Server) render(c echo.Context, msg assist.Message) error {
	snap := s.svc.Session(c.Request().Context(), sessionID(c))

	token, _ := c.Get(csrfContextKey).(string)
	data := pageData{
		CSRFToken:   token,
		Message:     msg,
		Languages:   lang.All(),
		OCRLanguage: snap.OCRLanguage.Display,
		TTSLanguage: snap.TTSLanguage.Display,
		HasAPIKey:   snap.HasAPIKey,
	}
	if snap.Image != nil {
		data.HasImage = true
		data.ImageName = snap.Image.Filename
		data.ImageVersion = snap.UpdatedAt.UnixNano()
	}
	if snap.LastText != nil {
		data.ShowText = true
		data.Text = snap.LastText.Text
	}
	if snap.LastAudio != nil {
		data.ShowAudio = true
		data.AudioID = snap.LastAudio.ID
	}
	if snap.LastScene != nil {
		data.Scene = snap.LastScene.Text
	}

	status := http.StatusOK
	if msg.Severity == assist.SeverityError {
		status = http.StatusUnprocessableEntity
	}
	return c.Render(status, "index.html", data)
}

// result renders the page with the outcome of an action
func (s *Server) result(c echo.Context, err error, success string) error {
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Debug().Err(err).Msg("action failed")
		return s.render(c, assist.Present(err))
	}
	if success == "" {
		return s.render(c, assist.Message{})
	}
	return s.render(c, assist.Success(success))
}

func (s *Server) handleIndex(c echo.Context) error {
	return s.render(c, assist.Message{})
}

func (s *Server) handleUpload(c echo.Context) error {
	ctx := c.Request().Context()
	id := sessionID(c)

	fh, err := c.FormFile("image")
	if err != nil {
		// nothing chosen: the service reports the missing image
		_, err = s.svc.Upload(ctx, id, nil, "", "")
		return s.result(c, err, "")
	}

	f, err := fh.Open()
	if err != nil {
		return s.result(c, err, "")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return s.result(c, err, "")
	}

	_, err = s.svc.Upload(ctx, id, data, fh.Filename, fh.Header.Get(echo.HeaderContentType))
	return s.result(c, err, msgUploaded)
}

func (s *Server) handleClear(c echo.Context) error {
	s.svc.ClearImage(c.Request().Context(), sessionID(c))
	return s.result(c, nil, msgCleared)
}

func (s *Server) handleLanguages(c echo.Context) error {
	err := s.svc.SelectLanguages(c.Request().Context(), sessionID(c), c.FormValue("ocr_language"), c.FormValue("tts_language"))
	return s.result(c, err, msgLanguages)
}

func (s *Server) handleExtract(c echo.Context) error {
	res, err := s.svc.ExtractText(c.Request().Context(), sessionID(c))
	if err == nil && res.Text == "" {
		return s.render(c, assist.Message{Severity: assist.SeverityWarning, Text: msgNoTextDetected})
	}
	return s.result(c, err, "")
}

func (s *Server) handleReadAloud(c echo.Context) error {
	_, err := s.svc.ReadAloud(c.Request().Context(), sessionID(c))
	return s.result(c, err, msgSpeech)
}

func (s *Server) handleDescribe(c echo.Context) error {
	_, err := s.svc.DescribeScene(c.Request().Context(), sessionID(c))
	return s.result(c, err, "")
}

func (s *Server) handleAPIKey(c echo.Context) error {
	err := s.svc.UpdateAPIKey(c.Request().Context(), sessionID(c), c.FormValue("api_key"))
	return s.result(c, err, msgKeyUpdated)
}

func (s *Server) handlePreview(c echo.Context) error {
	snap := s.svc.Session(c.Request().Context(), sessionID(c))
	if snap.Image == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no image uploaded")
	}
	png, err := snap.Image.PreviewPNG(previewSide)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, "image/png", png)
}

func (s *Server) handleDownloadText(c echo.Context) error {
	res, err := s.svc.ExtractedText(c.Request().Context(), sessionID(c))
	if err != nil {
		return s.downloadError(c, err)
	}
	setDisposition(c, "attachment", textFilename)
	return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, []byte(res.Text))
}

func (s *Server) handleAudio(c echo.Context) error {
	return s.serveAudio(c, "inline")
}

func (s *Server) handleDownloadSpeech(c echo.Context) error {
	return s.serveAudio(c, "attachment")
}

func (s *Server) serveAudio(c echo.Context, disposition string) error {
	f, artifact, err := s.svc.OpenAudio(c.Request().Context(), sessionID(c))
	if err != nil {
		return s.downloadError(c, err)
	}
	defer f.Close()

	setDisposition(c, disposition, speechFilename)
	c.Response().Header().Set(echo.HeaderContentType, "audio/mpeg")
	// ServeContent handles range requests, which audio players rely on
	http.ServeContent(c.Response(), c.Request(), speechFilename, artifact.CreatedAt, f)
	return nil
}

func (s *Server) downloadError(c echo.Context, err error) error {
	if assist.Classify(err) == assist.KindMissingInput {
		return echo.NewHTTPError(http.StatusNotFound, assist.Present(err).Text)
	}
	return err
}

func setDisposition(c echo.Context, disposition, name string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, disposition+`; filename="`+name+`"`)
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: s.svc.SessionCount(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	})
}
