// Package httpapi provides the HTTP API for reportd.
package httpapi

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/answer"
	"github.com/fyrsmithlabs/reportd/internal/audio"
	"github.com/fyrsmithlabs/reportd/internal/extraction"
	"github.com/fyrsmithlabs/reportd/internal/reports"
	"github.com/fyrsmithlabs/reportd/internal/triage"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// APIKey, when set, gates mutating endpoints behind an X-Api-Key
	// header check.
	APIKey string
}

// Extractor derives metadata from document text.
type Extractor interface {
	Extract(ctx context.Context, docURL, text string) (extraction.Metadata, error)
}

// Fetcher turns a URL into plain text.
type Fetcher interface {
	Text(ctx context.Context, pageURL string, maxChars int) (string, error)
}

// Answerer answers questions about a report.
type Answerer interface {
	Answer(ctx context.Context, req answer.Request) (answer.Response, error)
}

// AudioSummarizer produces cached audio summaries.
type AudioSummarizer interface {
	Summarize(ctx context.Context, docURL, title, summaryHint string) (audio.Summary, error)
}

// Sweeper runs one discovery sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (triage.Outcome, error)
}

// ReportStore lists and creates reports.
type ReportStore interface {
	List(ctx context.Context) ([]reports.Report, error)
	Create(ctx context.Context, r reports.Report) (reports.Report, error)
}

// ImageResolver resolves a page's preview image.
type ImageResolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// Deps are the collaborators behind the API surface. Optional ones may
// be nil; their endpoints then return 500 with a configuration error.
type Deps struct {
	Extractor Extractor
	Fetcher   Fetcher
	Answerer  Answerer
	Audio     AudioSummarizer
	Sweeper   Sweeper
	Reports   ReportStore
	Images    ImageResolver
	Uploads   *UploadHandler

	// BlobRoot, when non-empty, is served statically under /blobs/.
	BlobRoot string
}

// Server is the reportd HTTP server.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config Config
}

// NewServer creates the HTTP server with routes registered.
func NewServer(deps Deps, logger *zap.Logger, cfg Config) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8480
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if s.deps.BlobRoot != "" {
		s.echo.Static("/blobs", s.deps.BlobRoot)
	}

	api := s.echo.Group("/api")
	api.POST("/summarize", s.handleSummarize)
	api.POST("/chat", s.handleChat)
	api.GET("/og-image", s.handleOGImage)
	api.GET("/reports", s.handleListReports)

	mutating := api.Group("", s.apiKeyMiddleware)
	mutating.POST("/audio", s.handleAudio)
	mutating.GET("/discover", s.handleDiscover)
	mutating.POST("/discover", s.handleDiscover)
	mutating.POST("/reports", s.handleCreateReport)
	mutating.POST("/upload", s.handleUpload)
}

// apiKeyMiddleware gates endpoints that spend money or write records.
// A server with no key configured leaves them open.
func (s *Server) apiKeyMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.config.APIKey == "" {
			return next(c)
		}
		provided := c.Request().Header.Get("X-Api-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.config.APIKey)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing api key")
		}
		return next(c)
	}
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
