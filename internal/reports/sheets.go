package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Sentinel errors.
var (
	// ErrNotConfigured indicates missing record store credentials.
	ErrNotConfigured = errors.New("record store not configured")

	// ErrStoreUnavailable indicates the backing spreadsheet API failed.
	ErrStoreUnavailable = errors.New("record store request failed")
)

// Store is the durable record store for reports.
type Store interface {
	// List returns all persisted reports in sheet order.
	List(ctx context.Context) ([]Report, error)

	// Append persists one report as a new row.
	Append(ctx context.Context, r Report) error
}

// SheetsConfig holds the spreadsheet-backed store configuration.
type SheetsConfig struct {
	// APIKey and SpreadsheetID drive reads through the values API.
	APIKey        string
	SpreadsheetID string
	SheetName     string

	// AppendURL is the webhook endpoint that appends a row; the row is
	// passed JSON-encoded in the data query parameter.
	AppendURL string

	// BaseURL overrides the values API host. Used by tests.
	BaseURL string

	Timeout time.Duration
}

// SheetsStore reads reports through the Google Sheets values API and
// writes through an Apps-Script-style webhook.
type SheetsStore struct {
	cfg        SheetsConfig
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Store = (*SheetsStore)(nil)

// NewSheetsStore creates the spreadsheet-backed store. Fails fast when
// read credentials are missing.
func NewSheetsStore(cfg SheetsConfig, logger *zap.Logger) (*SheetsStore, error) {
	if cfg.APIKey == "" || cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: api key and spreadsheet id required", ErrNotConfigured)
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "crypto-reports"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://sheets.googleapis.com"
	}
	return &SheetsStore{
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// valuesResponse is the wire format of a values API read.
type valuesResponse struct {
	Values [][]string `json:"values"`
}

// List reads the whole sheet and normalizes rows into Reports.
// The first row is the header; its cells become lowercased,
// underscore-joined field keys.
func (s *SheetsStore) List(ctx context.Context) ([]Report, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?key=%s",
		s.baseURL, s.cfg.SpreadsheetID, url.PathEscape(s.cfg.SheetName), url.QueryEscape(s.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(body)
		if len(detail) > 500 {
			detail = detail[:500]
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrStoreUnavailable, resp.StatusCode, detail)
	}

	var parsed valuesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse values response: %w", err)
	}

	rows := parsed.Values
	if len(rows) < 2 {
		return []Report{}, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
	}

	reports := make([]Report, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := map[string]string{}
		for j, h := range headers {
			if j < len(rows[i]) {
				row[h] = strings.TrimSpace(rows[i][j])
			}
		}
		if r, ok := normalizeRow(row, 1000+i); ok {
			reports = append(reports, r)
		}
	}

	return reports, nil
}

// Append writes one report through the webhook. The webhook accepts the
// record JSON-encoded in the data query parameter and handles row
// layout itself.
func (s *SheetsStore) Append(ctx context.Context, r Report) error {
	if s.cfg.AppendURL == "" {
		return fmt.Errorf("%w: append url required", ErrNotConfigured)
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	endpoint := s.cfg.AppendURL + "?data=" + url.QueryEscape(string(payload))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: append returned HTTP %d", ErrStoreUnavailable, resp.StatusCode)
	}

	s.logger.Debug("appended report row",
		zap.Int("id", r.ID),
		zap.String("title", r.Title),
	)

	return nil
}
