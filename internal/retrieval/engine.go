// Package retrieval assembles grounding context for a document.
//
// Retrieval is an ordered list of strategies, each with a success
// predicate, evaluated in sequence: semantic vector lookup first,
// full-document scrape second. When every strategy fails the engine
// returns a sentinel context so callers can still answer from general
// knowledge, explicitly flagged as ungrounded.
package retrieval

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/scrape"
	"github.com/fyrsmithlabs/reportd/internal/vectorstore"
)

var tracer = otel.Tracer("reportd.retrieval")

// Source tags where a context came from.
type Source string

const (
	// SourceSemantic means the context is concatenated vector matches.
	SourceSemantic Source = "semantic"

	// SourceScraped means the context is flattened full-document text.
	SourceScraped Source = "scraped"

	// SourceUnavailable means no context could be extracted.
	SourceUnavailable Source = "unavailable"
)

// FailedContext is returned when extraction fails entirely. Callers
// pass it through to the model so the answer is explicitly ungrounded.
const FailedContext = "[Context extraction failed. Answer based on general knowledge.]"

// chunkDelimiter separates concatenated semantic matches.
const chunkDelimiter = "\n\n---\n\n"

// Engine resolves context for (document, query) pairs.
type Engine struct {
	store   vectorstore.Store // nil when no semantic backend is configured
	scraper *scrape.Client
	topK    int
	logger  *zap.Logger
}

// New creates a retrieval engine. store may be nil.
func New(store vectorstore.Store, scraper *scrape.Client, topK int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Engine{
		store:   store,
		scraper: scraper,
		topK:    topK,
		logger:  logger,
	}
}

// strategy is one way of obtaining context, with its source tag.
type strategy struct {
	source Source
	fetch  func(ctx context.Context, docURL, query string, maxChars int) (string, error)
}

// strategies returns the ordered fallback chain.
func (e *Engine) strategies() []strategy {
	chain := []strategy{}
	if e.store != nil {
		chain = append(chain, strategy{source: SourceSemantic, fetch: e.semantic})
	}
	chain = append(chain, strategy{source: SourceScraped, fetch: e.scraped})
	return chain
}

// Context returns grounding text for the document, tagged with its
// source. It never returns an error: a fully failed chain degrades to
// the FailedContext sentinel with SourceUnavailable.
func (e *Engine) Context(ctx context.Context, docURL, query string, maxChars int) (string, Source) {
	ctx, span := tracer.Start(ctx, "Engine.Context")
	defer span.End()

	for _, s := range e.strategies() {
		text, err := s.fetch(ctx, docURL, query, maxChars)
		if err != nil {
			e.logger.Warn("retrieval strategy failed, falling back",
				zap.String("strategy", string(s.source)),
				zap.String("url", docURL),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		span.SetAttributes(
			attribute.String("source", string(s.source)),
			attribute.Int("chars", len(text)),
		)
		contextsTotal.WithLabelValues(string(s.source)).Inc()
		return text, s.source
	}

	span.SetAttributes(attribute.String("source", string(SourceUnavailable)))
	contextsTotal.WithLabelValues(string(SourceUnavailable)).Inc()
	return FailedContext, SourceUnavailable
}

// semantic embeds the query and concatenates the top-K chunks indexed
// for this document, best match first.
func (e *Engine) semantic(ctx context.Context, docURL, query string, maxChars int) (string, error) {
	matches, err := e.store.Search(ctx, query, e.topK, map[string]string{"url": docURL})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}

	e.logger.Debug("semantic context hit",
		zap.String("url", docURL),
		zap.Int("chunks", len(matches)),
	)

	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Content
	}
	return scrape.Truncate(strings.Join(parts, chunkDelimiter), maxChars), nil
}

// scraped flattens the full document text.
func (e *Engine) scraped(ctx context.Context, docURL, _ string, maxChars int) (string, error) {
	return e.scraper.Text(ctx, docURL, maxChars)
}
