// Package config provides configuration loading for reportd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the reportd daemon.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	LLM         LLMConfig         `koanf:"llm"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Scrape      ScrapeConfig      `koanf:"scrape"`
	Search      SearchConfig      `koanf:"search"`
	Speech      SpeechConfig      `koanf:"speech"`
	Records     RecordsConfig     `koanf:"records"`
	Blobs       BlobsConfig       `koanf:"blobs"`
	Notify      NotifyConfig      `koanf:"notify"`
	Triage      TriageConfig      `koanf:"triage"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	APIKey          Secret   `koanf:"api_key"` // optional shared-secret gate for mutating endpoints
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig controls zap logger construction.
type LoggingConfig struct {
	Level  string            `koanf:"level"`
	Format string            `koanf:"format"` // "json" or "console"
	Fields map[string]string `koanf:"fields"`
}

// LLMConfig holds chat-completion provider configuration.
// The client speaks the OpenAI chat-completions wire format, which
// covers OpenRouter and compatible gateways.
type LLMConfig struct {
	BaseURL string   `koanf:"base_url"`
	APIKey  Secret   `koanf:"api_key"`
	Model   string   `koanf:"model"`
	Referer string   `koanf:"referer"` // OpenRouter attribution header
	Title   string   `koanf:"title"`   // OpenRouter attribution header
	Timeout Duration `koanf:"timeout"`
}

// EmbeddingsConfig holds text-embedding provider configuration.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  Secret `koanf:"api_key"`
	Model   string `koanf:"model"`
}

// VectorStoreConfig holds the embedded vector database configuration.
// The semantic index is optional; when Path is empty the retrieval
// engine skips straight to the scrape fallback.
type VectorStoreConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
	TopK       int    `koanf:"top_k"`
}

// ScrapeConfig holds page-to-text extraction configuration.
// ReaderBaseURL points at a Jina-style reader service; when empty the
// client falls back to fetching the page and extracting text locally.
type ScrapeConfig struct {
	ReaderBaseURL string   `koanf:"reader_base_url"`
	Timeout       Duration `koanf:"timeout"`
}

// SearchConfig holds web-search provider configuration.
type SearchConfig struct {
	BaseURL    string   `koanf:"base_url"`
	APIKey     Secret   `koanf:"api_key"`
	Queries    []string `koanf:"queries"`
	MaxResults int      `koanf:"max_results"`
	DaysBack   int      `koanf:"days_back"`
	Timeout    Duration `koanf:"timeout"`
}

// SpeechConfig holds text-to-speech provider configuration.
type SpeechConfig struct {
	BaseURL string   `koanf:"base_url"`
	APIKey  Secret   `koanf:"api_key"`
	Model   string   `koanf:"model"`
	Voice   string   `koanf:"voice"`
	Timeout Duration `koanf:"timeout"`
}

// RecordsConfig holds the spreadsheet-backed record store configuration.
type RecordsConfig struct {
	APIKey        Secret   `koanf:"api_key"`
	SpreadsheetID string   `koanf:"spreadsheet_id"`
	SheetName     string   `koanf:"sheet_name"`
	AppendURL     string   `koanf:"append_url"` // webhook endpoint accepting ?data=<json>
	Timeout       Duration `koanf:"timeout"`
}

// BlobsConfig holds the content-addressed object store configuration.
type BlobsConfig struct {
	Path      string `koanf:"path"`       // filesystem root for stored objects
	PublicURL string `koanf:"public_url"` // base URL under which objects resolve
}

// NotifyConfig holds Telegram notification configuration.
type NotifyConfig struct {
	BotToken Secret   `koanf:"bot_token"`
	ChatID   string   `koanf:"chat_id"`
	Timeout  Duration `koanf:"timeout"`
}

// TriageConfig holds candidate triage policy.
// Thresholds are policy constants with a cost/quality tradeoff baked
// in, so they are configurable rather than hard-coded.
type TriageConfig struct {
	PublishScore int `koanf:"publish_score"` // score >= this: auto-publish
	ReviewScore  int `koanf:"review_score"`  // score >= this: pending review
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8480
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://openrouter.ai/api"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "anthropic/claude-3.5-sonnet"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(60 * time.Second)
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}

	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "reports"
	}
	if cfg.VectorStore.TopK == 0 {
		cfg.VectorStore.TopK = 5
	}

	if cfg.Scrape.Timeout == 0 {
		cfg.Scrape.Timeout = Duration(20 * time.Second)
	}

	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = "https://api.tavily.com"
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 5
	}
	if cfg.Search.DaysBack == 0 {
		cfg.Search.DaysBack = 7
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = Duration(30 * time.Second)
	}
	if len(cfg.Search.Queries) == 0 {
		cfg.Search.Queries = []string{
			"institutional crypto research report filetype:pdf",
			`digital assets outlook report "JPMorgan" OR "Bernstein" OR "Messari" filetype:pdf`,
			"state of crypto report a16z OR coindesk OR the block filetype:pdf",
		}
	}

	if cfg.Speech.BaseURL == "" {
		cfg.Speech.BaseURL = "https://api.openai.com"
	}
	if cfg.Speech.Model == "" {
		cfg.Speech.Model = "tts-1"
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = "alloy"
	}
	if cfg.Speech.Timeout == 0 {
		cfg.Speech.Timeout = Duration(60 * time.Second)
	}

	if cfg.Records.SheetName == "" {
		cfg.Records.SheetName = "crypto-reports"
	}
	if cfg.Records.Timeout == 0 {
		cfg.Records.Timeout = Duration(30 * time.Second)
	}

	if cfg.Blobs.Path == "" {
		cfg.Blobs.Path = "./data/blobs"
	}
	if cfg.Blobs.PublicURL == "" {
		cfg.Blobs.PublicURL = fmt.Sprintf("http://%s:%d/blobs", cfg.Server.Host, cfg.Server.Port)
	}

	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = Duration(10 * time.Second)
	}

	if cfg.Triage.PublishScore == 0 {
		cfg.Triage.PublishScore = 8
	}
	if cfg.Triage.ReviewScore == 0 {
		cfg.Triage.ReviewScore = 5
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Triage.ReviewScore > c.Triage.PublishScore {
		return fmt.Errorf("triage.review_score (%d) must not exceed triage.publish_score (%d)",
			c.Triage.ReviewScore, c.Triage.PublishScore)
	}
	if c.VectorStore.Enabled && c.VectorStore.Path == "" {
		return fmt.Errorf("vectorstore.path is required when vectorstore.enabled is true")
	}
	return nil
}
