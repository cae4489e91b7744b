// Package notify sends curation digests to an external channel.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Notifier pushes a formatted message to an external channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
	Enabled() bool
}

// Config holds Telegram notifier configuration.
type Config struct {
	BotToken string
	ChatID   string

	// BaseURL overrides the Telegram API host. Used by tests.
	BaseURL string

	Timeout time.Duration
}

// Telegram sends Markdown messages via the Telegram bot API.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram creates a Telegram notifier. An unconfigured notifier is
// valid: Enabled reports false and Send is rejected.
func NewTelegram(cfg Config, logger *zap.Logger) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Telegram{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Enabled reports whether credentials are present.
func (t *Telegram) Enabled() bool {
	return t.botToken != "" && t.chatID != ""
}

// Send posts a Markdown message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.Enabled() {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	t.logger.Debug("notification sent", zap.Int("chars", len(text)))
	return nil
}

// Noop is a disabled notifier.
type Noop struct{}

var _ Notifier = (*Noop)(nil)

// Send discards the message.
func (Noop) Send(ctx context.Context, text string) error { return nil }

// Enabled reports false.
func (Noop) Enabled() bool { return false }
