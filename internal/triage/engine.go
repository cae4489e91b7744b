// Package triage discovers report candidates via web search, scores
// them with a model, and routes each one to publish, pending review,
// or discard.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/extraction"
	"github.com/fyrsmithlabs/reportd/internal/llm"
	"github.com/fyrsmithlabs/reportd/internal/notify"
	"github.com/fyrsmithlabs/reportd/internal/reports"
	"github.com/fyrsmithlabs/reportd/internal/scrape"
	"github.com/fyrsmithlabs/reportd/internal/search"
)

// Disposition is the triage decision for one candidate.
type Disposition string

const (
	DispositionPublished Disposition = "published"
	DispositionPending   Disposition = "pending"
	DispositionDiscarded Disposition = "discarded"
)

// Searcher is the web-search dependency.
type Searcher interface {
	PickQuery() string
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// Completer is the chat-completion dependency.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// MetadataExtractor derives structured metadata from document text.
type MetadataExtractor interface {
	Extract(ctx context.Context, docURL, text string) (extraction.Metadata, error)
}

// ContextFetcher turns a URL into plain text.
type ContextFetcher interface {
	Text(ctx context.Context, pageURL string, maxChars int) (string, error)
}

// RecordStore lists existing reports and persists accepted ones.
type RecordStore interface {
	List(ctx context.Context) ([]reports.Report, error)
	Create(ctx context.Context, r reports.Report) (reports.Report, error)
}

// Config holds triage policy.
type Config struct {
	// PublishScore is the minimum score for auto-publish.
	PublishScore int

	// ReviewScore is the minimum score for the pending queue.
	ReviewScore int
}

// Item records one candidate's outcome.
type Item struct {
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	Score       int         `json:"score"`
	Disposition Disposition `json:"disposition"`
	Reasoning   string      `json:"reasoning,omitempty"`
}

// Outcome summarizes one sweep.
type Outcome struct {
	Query     string   `json:"query"`
	Scanned   int      `json:"scanned"`
	Published []Item   `json:"published"`
	Pending   []Item   `json:"pending"`
	Discarded []Item   `json:"discarded"`
	Errors    []string `json:"errors,omitempty"`
}

// Engine runs discovery sweeps.
type Engine struct {
	cfg       Config
	searcher  Searcher
	completer Completer
	extractor MetadataExtractor
	fetcher   ContextFetcher
	store     RecordStore
	notifier  notify.Notifier
	logger    *zap.Logger
}

// New creates a triage engine. notifier may be nil.
func New(cfg Config, searcher Searcher, completer Completer, extractor MetadataExtractor,
	fetcher ContextFetcher, store RecordStore, notifier notify.Notifier, logger *zap.Logger) *Engine {
	if cfg.PublishScore <= 0 {
		cfg.PublishScore = 8
	}
	if cfg.ReviewScore <= 0 {
		cfg.ReviewScore = 5
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		searcher:  searcher,
		completer: completer,
		extractor: extractor,
		fetcher:   fetcher,
		store:     store,
		notifier:  notifier,
		logger:    logger,
	}
}

// Sweep runs one discovery pass: search, dedupe against the record
// store, score each new candidate, and persist the accepted ones.
//
// Candidate failures are isolated: a failing item is recorded in
// Outcome.Errors and the sweep continues with the rest. Only a failure
// of the search call itself aborts the sweep.
func (e *Engine) Sweep(ctx context.Context) (Outcome, error) {
	query := e.searcher.PickQuery()
	out := Outcome{Query: query}

	results, err := e.searcher.Search(ctx, query)
	if err != nil {
		return out, fmt.Errorf("discovery search: %w", err)
	}
	out.Scanned = len(results)

	known := e.knownURLs(ctx)

	for _, res := range results {
		if res.URL == "" || known[normalizeURL(res.URL)] {
			continue
		}

		item, err := e.process(ctx, res)
		if err != nil {
			sweepErrorsTotal.Inc()
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", res.URL, err))
			e.logger.Warn("candidate failed, continuing sweep",
				zap.String("url", res.URL), zap.Error(err))
			continue
		}

		known[normalizeURL(res.URL)] = true
		candidatesTotal.WithLabelValues(string(item.Disposition)).Inc()
		switch item.Disposition {
		case DispositionPublished:
			out.Published = append(out.Published, item)
		case DispositionPending:
			out.Pending = append(out.Pending, item)
		default:
			out.Discarded = append(out.Discarded, item)
		}
	}

	e.notifyDigest(ctx, out)

	e.logger.Info("discovery sweep complete",
		zap.String("query", query),
		zap.Int("scanned", out.Scanned),
		zap.Int("published", len(out.Published)),
		zap.Int("pending", len(out.Pending)),
		zap.Int("discarded", len(out.Discarded)),
		zap.Int("errors", len(out.Errors)),
	)

	return out, nil
}

// process scores one candidate and persists it when accepted.
func (e *Engine) process(ctx context.Context, res search.Result) (Item, error) {
	score, reasoning, err := e.score(ctx, res)
	if err != nil {
		return Item{}, fmt.Errorf("scoring: %w", err)
	}

	item := Item{URL: res.URL, Title: res.Title, Score: score, Reasoning: reasoning}

	if score < e.cfg.ReviewScore {
		item.Disposition = DispositionDiscarded
		return item, nil
	}

	meta := e.describe(ctx, res)
	u := res.URL
	report := reports.Report{
		Title:   meta.Title,
		Source:  meta.Source,
		Summary: meta.Summary,
		Date:    meta.Date,
		Tags:    meta.Tags,
		URL:     &u,
		Icon:    meta.Icon,
		AddedBy: "AI Search",
	}

	if score >= e.cfg.PublishScore {
		item.Disposition = DispositionPublished
		report.Verified = true
		report.Notes = fmt.Sprintf("Auto-approved by AI Search (Score: %d)", score)
	} else {
		item.Disposition = DispositionPending
		report.Verified = false
		report.Notes = fmt.Sprintf("Pending Review (AI Score: %d)", score)
	}

	if _, err := e.store.Create(ctx, report); err != nil {
		return Item{}, fmt.Errorf("persisting %s candidate: %w", item.Disposition, err)
	}
	item.Title = report.Title

	return item, nil
}

// scoreResponse is the JSON shape the scoring prompt requests.
type scoreResponse struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// score asks the model to rate candidate quality on a 1-10 scale.
func (e *Engine) score(ctx context.Context, res search.Result) (int, string, error) {
	content, err := e.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: scoreSystemPrompt},
			{Role: "user", Content: buildScorePrompt(res)},
		},
		MaxTokens:   200,
		Temperature: 0.3,
	})
	if err != nil {
		return 0, "", err
	}

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(llm.StripFences(content)), &parsed); err != nil {
		return 0, "", fmt.Errorf("parse score response: %w", err)
	}
	if parsed.Score < 1 || parsed.Score > 10 {
		return 0, "", fmt.Errorf("score %d outside 1-10", parsed.Score)
	}
	return parsed.Score, parsed.Reasoning, nil
}

// describe extracts metadata for an accepted candidate. Extraction is
// best effort: when the document cannot be scraped or parsed the
// search snippet stands in, so acceptance never depends on it.
func (e *Engine) describe(ctx context.Context, res search.Result) extraction.Metadata {
	text, err := e.fetcher.Text(ctx, res.URL, scrape.ExtractContextChars)
	if err == nil && strings.TrimSpace(text) != "" {
		if meta, err := e.extractor.Extract(ctx, res.URL, text); err == nil {
			if meta.Title == "" {
				meta.Title = res.Title
			}
			if meta.Title == "" {
				meta.Title = res.URL
			}
			return meta
		} else {
			e.logger.Warn("metadata extraction failed, using snippet",
				zap.String("url", res.URL), zap.Error(err))
		}
	} else if err != nil {
		e.logger.Warn("candidate scrape failed, using snippet",
			zap.String("url", res.URL), zap.Error(err))
	}

	meta := extraction.Metadata{
		Title:   res.Title,
		Summary: res.Snippet,
	}
	if meta.Title == "" {
		meta.Title = res.URL
	}
	meta.Source = sourceFromURL(res.URL)
	return meta
}

// knownURLs indexes existing report URLs for dedupe. A store failure
// degrades to an empty set rather than aborting the sweep.
func (e *Engine) knownURLs(ctx context.Context) map[string]bool {
	known := map[string]bool{}
	existing, err := e.store.List(ctx)
	if err != nil {
		e.logger.Warn("listing existing reports failed, dedupe disabled for this sweep",
			zap.Error(err))
		return known
	}
	for _, r := range existing {
		if u := r.DocumentURL(); u != "" {
			known[normalizeURL(u)] = true
		}
	}
	return known
}

// notifyDigest sends a summary when the sweep accepted anything.
func (e *Engine) notifyDigest(ctx context.Context, out Outcome) {
	if !e.notifier.Enabled() || len(out.Published)+len(out.Pending) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("*Report Discovery Sweep*\n")
	fmt.Fprintf(&b, "Query: %s\n", out.Query)
	if len(out.Published) > 0 {
		b.WriteString("\n*Published:*\n")
		for _, it := range out.Published {
			fmt.Fprintf(&b, "• %s (score %d)\n%s\n", it.Title, it.Score, it.URL)
		}
	}
	if len(out.Pending) > 0 {
		b.WriteString("\n*Pending review:*\n")
		for _, it := range out.Pending {
			fmt.Fprintf(&b, "• %s (score %d)\n%s\n", it.Title, it.Score, it.URL)
		}
	}

	if err := e.notifier.Send(ctx, b.String()); err != nil {
		e.logger.Warn("digest notification failed", zap.Error(err))
	}
}

func normalizeURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(strings.ToLower(u)), "/")
}

// sourceFromURL derives a publisher name from the host.
func sourceFromURL(raw string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	host, _, _ := strings.Cut(trimmed, "/")
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "Unknown"
	}
	return host
}

const scoreSystemPrompt = "You are a research curator for an institutional crypto research " +
	"dashboard. Rate how valuable a discovered document is as a primary research report. " +
	"Respond with a single JSON object and nothing else."

func buildScorePrompt(res search.Result) string {
	var b strings.Builder
	b.WriteString("Rate this candidate on a 1-10 scale. High scores are reserved for ")
	b.WriteString("substantial primary research (institutional reports, whitepapers, ")
	b.WriteString("in-depth market analyses). News articles, blog posts, and promotional ")
	b.WriteString("content score low.\n\n")
	b.WriteString(`Return JSON: {"score": integer 1-10, "reasoning": string (one sentence)}` + "\n\n")
	fmt.Fprintf(&b, "Title: %s\nURL: %s\nSnippet: %s\n", res.Title, res.URL, res.Snippet)
	return b.String()
}
