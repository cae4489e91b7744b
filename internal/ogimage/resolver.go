// Package ogimage resolves a page's social preview image.
package ogimage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrNoImage indicates the page declares no preview image.
var ErrNoImage = errors.New("no preview image found")

// Resolver fetches pages and extracts their og:image URL.
type Resolver struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a resolver. Preview lookups are latency-sensitive UI
// decoration, hence the short timeout.
func New(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		httpClient: &http.Client{Timeout: 6 * time.Second},
		logger:     logger,
	}
}

// Resolve returns the absolute preview image URL for pageURL, checking
// og:image first and twitter:image as fallback.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil || !strings.HasPrefix(base.Scheme, "http") {
		return "", fmt.Errorf("invalid page url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch page: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	image := metaContent(doc, `meta[property="og:image"]`)
	if image == "" {
		image = metaContent(doc, `meta[name="twitter:image"]`)
	}
	if image == "" {
		return "", ErrNoImage
	}

	resolved, err := base.Parse(image)
	if err != nil {
		return "", fmt.Errorf("resolve image url %q: %w", image, err)
	}

	r.logger.Debug("resolved preview image",
		zap.String("page", pageURL),
		zap.String("image", resolved.String()),
	)

	return resolved.String(), nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}
