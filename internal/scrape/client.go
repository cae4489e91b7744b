// Package scrape turns document URLs into plain text.
//
// The primary path is a Jina-style reader service that handles PDFs
// and script-heavy pages. When no reader service is configured the
// client fetches the page itself and extracts the readable text
// locally with go-readability.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// Character budgets for callers. Deep context feeds long-form
// generation; extract context keeps metadata prompts inside token
// limits.
const (
	DeepContextChars    = 15000
	ExtractContextChars = 6000
)

// ErrFetchFailed indicates the document could not be fetched or parsed.
var ErrFetchFailed = errors.New("document fetch failed")

// Config holds scrape client configuration.
type Config struct {
	// ReaderBaseURL is the reader-service endpoint, e.g. https://r.jina.ai.
	// Empty enables the local readability fallback.
	ReaderBaseURL string

	Timeout time.Duration
}

// Client extracts plain text from documents.
type Client struct {
	readerBaseURL string
	httpClient    *http.Client
	logger        *zap.Logger
}

// New creates a scrape client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		readerBaseURL: strings.TrimSuffix(cfg.ReaderBaseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// Text fetches the document at pageURL and returns its plain text,
// truncated to maxChars. A maxChars of 0 disables truncation.
func (c *Client) Text(ctx context.Context, pageURL string, maxChars int) (string, error) {
	var (
		text string
		err  error
	)
	if c.readerBaseURL != "" {
		text, err = c.readerText(ctx, pageURL)
	} else {
		text, err = c.localText(ctx, pageURL)
	}
	if err != nil {
		return "", err
	}

	return Truncate(text, maxChars), nil
}

// Truncate trims text to at most maxChars bytes without splitting a
// multi-byte UTF-8 sequence at the boundary. A maxChars of 0 disables
// truncation.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// readerText fetches plain text through the reader service.
func (c *Client) readerText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.readerBaseURL+"/"+pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("X-Return-Format", "markdown")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: reader returned HTTP %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read reader response: %w", err)
	}

	return string(body), nil
}

// localText fetches the raw page and runs readability extraction.
func (c *Client) localText(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid url: %v", ErrFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("%w: readability: %v", ErrFetchFailed, err)
	}

	c.logger.Debug("extracted readable text locally",
		zap.String("url", pageURL),
		zap.Int("chars", len(article.TextContent)),
	)

	return article.TextContent, nil
}
