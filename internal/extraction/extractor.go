// Package extraction turns raw document text into structured report
// metadata via a fixed-schema LLM prompt.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/llm"
)

// ErrParseMetadata indicates the model returned something other than
// the requested JSON object.
var ErrParseMetadata = errors.New("metadata response not parseable")

// AllowedTags is the closed tag vocabulary the dashboard filters on.
var AllowedTags = []string{
	"Bitcoin", "Ethereum", "DeFi", "Stablecoins", "Regulation",
	"Macro", "Infrastructure", "NFT", "Institutional", "Research",
}

// Metadata is the structured description of a report document.
type Metadata struct {
	Title   string   `json:"title"`
	Source  string   `json:"source"`
	Date    string   `json:"date"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Icon    string   `json:"icon"`
}

// Completer is the chat-completion dependency.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Extractor prompts a model for report metadata.
type Extractor struct {
	completer Completer
	logger    *zap.Logger
}

// New creates a metadata extractor.
func New(completer Completer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{completer: completer, logger: logger}
}

// Extract derives metadata from the document text. Low temperature
// keeps the output deterministic enough to parse; a malformed response
// is a hard error so callers can decide whether to fall back. Fields
// the model omits stay empty except those with defaults, title
// included; callers with a better candidate fill it themselves.
func (e *Extractor) Extract(ctx context.Context, docURL, text string) (Metadata, error) {
	content, err := e.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: extractSystemPrompt},
			{Role: "user", Content: buildExtractPrompt(docURL, text)},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("extract metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(llm.StripFences(content)), &meta); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrParseMetadata, err)
	}

	applyMetadataDefaults(&meta)

	e.logger.Debug("extracted metadata",
		zap.String("url", docURL),
		zap.String("title", meta.Title),
		zap.Strings("tags", meta.Tags),
	)

	return meta, nil
}

// applyMetadataDefaults fills fields the model left blank and drops
// tags outside the allowed vocabulary.
func applyMetadataDefaults(m *Metadata) {
	if m.Date == "" {
		m.Date = time.Now().Format("2006-01-02")
	}
	if m.Icon == "" {
		m.Icon = "📄"
	}
	if m.Source == "" {
		m.Source = "Unknown"
	}

	allowed := make(map[string]bool, len(AllowedTags))
	for _, t := range AllowedTags {
		allowed[strings.ToLower(t)] = true
	}
	var tags []string
	for _, t := range m.Tags {
		if allowed[strings.ToLower(strings.TrimSpace(t))] {
			tags = append(tags, strings.TrimSpace(t))
		}
	}
	if len(tags) == 0 {
		tags = []string{"Research"}
	}
	m.Tags = tags
}

const extractSystemPrompt = "You are a metadata extraction engine for crypto research reports. " +
	"Respond with a single JSON object and nothing else."

func buildExtractPrompt(docURL, text string) string {
	var b strings.Builder
	b.WriteString("Extract metadata for the research report below.\n\n")
	b.WriteString("Return JSON with exactly these fields:\n")
	b.WriteString(`{"title": string, "source": string (publishing organization), ` +
		`"date": string (YYYY-MM-DD), "summary": string (2-3 sentences), ` +
		`"tags": array of strings, "icon": string (single emoji)}` + "\n\n")
	b.WriteString("Allowed tags: " + strings.Join(AllowedTags, ", ") + ".\n\n")
	b.WriteString("URL: " + docURL + "\n\nDocument text:\n" + text)
	return b.String()
}
