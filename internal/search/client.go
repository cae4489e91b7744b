// Package search provides a web-search client for report discovery.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrNotConfigured indicates a missing API key.
	ErrNotConfigured = errors.New("search client not configured")

	// ErrUpstream indicates a non-success response from the provider.
	ErrUpstream = errors.New("search request failed")
)

// Config holds web-search client configuration.
type Config struct {
	BaseURL string
	APIKey  string

	// Queries are rotated: one is picked at random per sweep to keep
	// per-run cost bounded while covering the query space over time.
	Queries []string

	MaxResults int
	DaysBack   int
	Timeout    time.Duration
}

// Result is one search hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"content"`
}

// Client calls a Tavily-style search API.
type Client struct {
	baseURL    string
	apiKey     string
	queries    []string
	maxResults int
	daysBack   int
	httpClient *http.Client
}

// New creates a search client. Fails fast on missing credentials.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key required", ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url required", ErrNotConfigured)
	}
	if len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("%w: at least one query required", ErrNotConfigured)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	daysBack := cfg.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		queries:    cfg.Queries,
		maxResults: maxResults,
		daysBack:   daysBack,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// PickQuery returns one of the configured queries at random.
func (c *Client) PickQuery() string {
	return c.queries[rand.Intn(len(c.queries))]
}

// searchRequest is the wire format of a search call.
type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeImages bool   `json:"include_images"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
	DaysBack      int    `json:"days_back"`
}

// searchResponse is the wire format of search results.
type searchResponse struct {
	Results []Result `json:"results"`
}

// Search runs one query and returns ranked results with snippets.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "advanced",
		IncludeImages: false,
		IncludeAnswer: false,
		MaxResults:    c.maxResults,
		DaysBack:      c.daysBack,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(respBody)
		if len(detail) > 300 {
			detail = detail[:300]
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUpstream, resp.StatusCode, detail)
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return parsed.Results, nil
}
