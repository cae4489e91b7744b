package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/answer"
	"github.com/fyrsmithlabs/reportd/internal/ogimage"
	"github.com/fyrsmithlabs/reportd/internal/reports"
	"github.com/fyrsmithlabs/reportd/internal/scrape"
)

// SummarizeRequest is the request body for POST /api/summarize.
type SummarizeRequest struct {
	URL string `json:"url"`
}

// handleSummarize runs metadata extraction for one document.
func (s *Server) handleSummarize(c echo.Context) error {
	if s.deps.Extractor == nil || s.deps.Fetcher == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "extraction is not configured")
	}

	var req SummarizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url field is required")
	}

	ctx := c.Request().Context()
	text, err := s.deps.Fetcher.Text(ctx, req.URL, scrape.ExtractContextChars)
	if err != nil {
		s.logger.Warn("summarize scrape failed", zap.String("url", req.URL), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "document could not be fetched")
	}

	meta, err := s.deps.Extractor.Extract(ctx, req.URL, text)
	if err != nil {
		s.logger.Warn("metadata extraction failed", zap.String("url", req.URL), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "metadata extraction failed")
	}

	return c.JSON(http.StatusOK, meta)
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	URL      string        `json:"url"`
	Title    string        `json:"title"`
	Question string        `json:"question"`
	History  []answer.Turn `json:"history"`
}

// handleChat answers one question about one report.
func (s *Server) handleChat(c echo.Context) error {
	if s.deps.Answerer == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "question answering is not configured")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" || req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url and question fields are required")
	}

	resp, err := s.deps.Answerer.Answer(c.Request().Context(), answer.Request{
		DocumentURL: req.URL,
		Title:       req.Title,
		Question:    req.Question,
		History:     req.History,
	})
	if err != nil {
		s.logger.Warn("chat answer failed", zap.String("url", req.URL), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "answer generation failed")
	}

	return c.JSON(http.StatusOK, resp)
}

// AudioRequest is the request body for POST /api/audio.
type AudioRequest struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	Summary string `json:"summary"`
}

// AudioResponse is the response body for POST /api/audio.
type AudioResponse struct {
	AudioContent string `json:"audioContent"`
	Script       string `json:"script"`
	Cached       bool   `json:"cached"`
}

// handleAudio returns the audio summary for a report.
func (s *Server) handleAudio(c echo.Context) error {
	if s.deps.Audio == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "audio synthesis is not configured")
	}

	var req AudioRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url and title fields are required")
	}

	summary, err := s.deps.Audio.Summarize(c.Request().Context(), req.URL, req.Title, req.Summary)
	if err != nil {
		s.logger.Warn("audio synthesis failed", zap.String("url", req.URL), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "audio synthesis failed")
	}

	return c.JSON(http.StatusOK, AudioResponse{
		AudioContent: summary.AudioURL,
		Script:       summary.Script,
		Cached:       summary.Cached,
	})
}

// DiscoverResponse is the response body for /api/discover.
type DiscoverResponse struct {
	Message string `json:"message"`
	Results any    `json:"results"`
}

// handleDiscover runs one discovery sweep synchronously.
func (s *Server) handleDiscover(c echo.Context) error {
	if s.deps.Sweeper == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "discovery is not configured")
	}

	out, err := s.deps.Sweeper.Sweep(c.Request().Context())
	if err != nil {
		s.logger.Error("discovery sweep failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "discovery sweep failed")
	}

	return c.JSON(http.StatusOK, DiscoverResponse{
		Message: "sweep complete",
		Results: out,
	})
}

// ListReportsResponse is the response body for GET /api/reports.
type ListReportsResponse struct {
	Reports []reports.Report `json:"reports"`
	Count   int              `json:"count"`
}

// handleListReports returns all persisted reports.
func (s *Server) handleListReports(c echo.Context) error {
	if s.deps.Reports == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "record store is not configured")
	}

	list, err := s.deps.Reports.List(c.Request().Context())
	if err != nil {
		s.logger.Error("listing reports failed", zap.Error(err))
		if errors.Is(err, reports.ErrStoreUnavailable) {
			return echo.NewHTTPError(http.StatusBadGateway, "record store unreachable")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "listing reports failed")
	}

	return c.JSON(http.StatusOK, ListReportsResponse{Reports: list, Count: len(list)})
}

// CreateReportResponse is the response body for POST /api/reports.
type CreateReportResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int    `json:"id"`
}

// handleCreateReport persists a manually submitted report.
func (s *Server) handleCreateReport(c echo.Context) error {
	if s.deps.Reports == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "record store is not configured")
	}

	var req reports.Report
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" || req.Source == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title and source fields are required")
	}
	if req.AddedBy == "" {
		req.AddedBy = "Manual"
	}

	created, err := s.deps.Reports.Create(c.Request().Context(), req)
	if err != nil {
		s.logger.Error("creating report failed", zap.String("title", req.Title), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "report could not be saved")
	}

	return c.JSON(http.StatusOK, CreateReportResponse{
		Success: true,
		Message: "report saved",
		ID:      created.ID,
	})
}

// handleOGImage redirects to the page's preview image.
func (s *Server) handleOGImage(c echo.Context) error {
	if s.deps.Images == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "preview resolution is not configured")
	}

	pageURL := strings.TrimSpace(c.QueryParam("url"))
	if pageURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url query parameter is required")
	}

	image, err := s.deps.Images.Resolve(c.Request().Context(), pageURL)
	if err != nil {
		if errors.Is(err, ogimage.ErrNoImage) {
			return echo.NewHTTPError(http.StatusNotFound, "no preview image")
		}
		s.logger.Debug("preview resolution failed", zap.String("url", pageURL), zap.Error(err))
		return echo.NewHTTPError(http.StatusNotFound, "no preview image")
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=604800")
	return c.Redirect(http.StatusFound, image)
}
