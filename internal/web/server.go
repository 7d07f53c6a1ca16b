// Package web is the browser front-end. It serves a single page with the
// API key form, the language selectors, the image upload and the three
// action buttons, and renders every action result or failure as a message.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"VisionAssist/internal/assist"
	"VisionAssist/internal/logging"
	"VisionAssist/internal/metrics"
	"VisionAssist/internal/speech"
	"VisionAssist/internal/upload"
)

//go:embed templates/*.html
var templateFS embed.FS

// Assistant is the part of assist.Service the pages drive
type Assistant interface {
	Session(ctx context.Context, id string) assist.Snapshot
	Upload(ctx context.Context, id string, data []byte, filename, mimeType string) (*upload.Image, error)
	ClearImage(ctx context.Context, id string)
	SelectLanguages(ctx context.Context, id, ocrDisplay, ttsDisplay string) error
	ExtractText(ctx context.Context, id string) (*assist.TextResult, error)
	ReadAloud(ctx context.Context, id string) (*speech.Artifact, error)
	DescribeScene(ctx context.Context, id string) (*assist.SceneResult, error)
	UpdateAPIKey(ctx context.Context, id, key string) error
	ExtractedText(ctx context.Context, id string) (*assist.TextResult, error)
	OpenAudio(ctx context.Context, id string) (*os.File, *speech.Artifact, error)
	SessionCount() int
}

// Options configure the server
type Options struct {
	Address        string
	MaxUploadBytes int64
	// SecureCookies marks the session cookie Secure (HTTPS deployments)
	SecureCookies bool
}

// Server wraps the echo instance
type Server struct {
	echo    *echo.Echo
	svc     Assistant
	metrics *metrics.Registry
	opts    Options
	started time.Time
}

type templateRenderer struct {
	templates *template.Template
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// NewServer builds the server and registers every route
func NewServer(svc Assistant, reg *metrics.Registry, opts Options) (*Server, error) {
	if opts.Address == "" {
		opts.Address = ":8501"
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &templateRenderer{templates: tmpl}

	s := &Server{echo: e, svc: svc, metrics: reg, opts: opts, started: time.Now()}

	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(RequestLogger(reg))
	if opts.MaxUploadBytes > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(opts.MaxUploadBytes, 10)))
	}

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", reg.EchoHandlerText)
	e.GET("/metrics.json", reg.EchoHandlerJSON)

	pages := e.Group("", s.sessionMiddleware, middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:" + csrfField,
		ContextKey:     csrfContextKey,
		CookieName:     "visionassist_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   opts.SecureCookies,
		CookieSameSite: http.SameSiteStrictMode,
	}))
	pages.GET("/", s.handleIndex)
	pages.POST("/upload", s.handleUpload)
	pages.POST("/clear", s.handleClear)
	pages.POST("/languages", s.handleLanguages)
	pages.POST("/extract", s.handleExtract)
	pages.POST("/read-aloud", s.handleReadAloud)
	pages.POST("/describe", s.handleDescribe)
	pages.POST("/api-key", s.handleAPIKey)
	pages.GET("/preview", s.handlePreview)
	pages.GET("/audio", s.handleAudio)
	pages.GET("/download/text", s.handleDownloadText)
	pages.GET("/download/speech", s.handleDownloadSpeech)

	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	logging.Info("Web front-end listening on %s", s.opts.Address)
	if err := s.echo.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
