package reports

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/blobcache"
)

// maxPDFBytes bounds the mirrored PDF download.
const maxPDFBytes = 50 << 20

// Service wraps the record store with ID allocation and PDF permanence.
type Service struct {
	store      Store
	cache      *blobcache.Cache
	httpClient *http.Client
	logger     *zap.Logger
}

// NewService creates the report persistence service. cache may be nil,
// which disables PDF mirroring.
func NewService(store Store, cache *blobcache.Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		cache:      cache,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// List returns all persisted reports.
func (s *Service) List(ctx context.Context) ([]Report, error) {
	return s.store.List(ctx)
}

// Create finalizes and persists a report.
//
// When the report has no ID yet, the service allocates the next one
// above the current maximum held by the store. Reports whose
// URL points at a PDF get mirrored into the blob store so the record
// outlives the original host; mirror failures fall back to the
// original link and never fail the write.
func (s *Service) Create(ctx context.Context, r Report) (Report, error) {
	if r.Title == "" || r.Source == "" {
		return Report{}, fmt.Errorf("title and source are required")
	}

	if r.ID == 0 {
		id, err := s.nextID(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("allocating id: %w", err)
		}
		r.ID = id
	}

	if r.Date == "" {
		r.Date = time.Now().Format("2006-01-02")
	}
	if len(r.Tags) == 0 {
		r.Tags = []string{"Research"}
	}
	if r.Icon == "" {
		r.Icon = DefaultIcon
	}

	s.mirrorPDF(ctx, &r)

	if err := s.store.Append(ctx, r); err != nil {
		return Report{}, err
	}

	return r, nil
}

// nextID allocates max(existing)+1, starting at 1001.
func (s *Service) nextID(ctx context.Context) (int, error) {
	existing, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	max := 1000
	for _, r := range existing {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1, nil
}

// mirrorPDF downloads a PDF-pointing URL into the blob store and sets
// PDFPath to the permanent location. Best effort only.
func (s *Service) mirrorPDF(ctx context.Context, r *Report) {
	if s.cache == nil || r.URL == nil || !strings.Contains(strings.ToLower(*r.URL), ".pdf") {
		return
	}

	if obj, ok, err := s.cache.Lookup(ctx, "reports", *r.URL, ".pdf"); err == nil && ok {
		r.PDFPath = &obj.Location
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *r.URL, nil)
	if err != nil {
		return
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("pdf mirror download failed, keeping original link",
			zap.String("url", *r.URL), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("pdf mirror download failed, keeping original link",
			zap.String("url", *r.URL), zap.Int("status", resp.StatusCode))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		s.logger.Warn("pdf mirror read failed, keeping original link",
			zap.String("url", *r.URL), zap.Error(err))
		return
	}

	obj, err := s.cache.Store(ctx, "reports", *r.URL, ".pdf", payload, "application/pdf")
	if err != nil {
		s.logger.Warn("pdf mirror store failed, keeping original link",
			zap.String("url", *r.URL), zap.Error(err))
		return
	}

	s.logger.Info("mirrored pdf to blob store",
		zap.String("url", *r.URL),
		zap.String("location", obj.Location),
	)
	r.PDFPath = &obj.Location
}
