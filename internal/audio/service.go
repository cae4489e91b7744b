// Package audio produces spoken summaries of reports.
//
// The pipeline is cache check, context retrieval, script generation,
// speech synthesis, then persistence. Audio is content-addressed by
// document URL, so a second request for the same report is a single
// metadata lookup. Nothing is cached until synthesis succeeds; a
// failed run leaves no partial artifacts behind.
package audio

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/blobcache"
	"github.com/fyrsmithlabs/reportd/internal/llm"
	"github.com/fyrsmithlabs/reportd/internal/retrieval"
	"github.com/fyrsmithlabs/reportd/internal/scrape"
)

const (
	// cacheNamespace prefixes audio object names in the blob store.
	cacheNamespace = "audio"

	// scriptMaxTokens keeps summaries near a minute of speech.
	scriptMaxTokens = 250

	// shortContextChars is the cutoff below which the retrieved context
	// is too thin for a content summary and the script leans on the
	// title instead.
	shortContextChars = 500

	// cachedScript replaces the generated script on a cache hit; the
	// original is not stored alongside the audio.
	cachedScript = "Audio loaded from cache."
)

// Completer is the chat-completion dependency.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Synthesizer converts a script to spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ContextResolver supplies grounding text for a document.
type ContextResolver interface {
	Context(ctx context.Context, docURL, query string, maxChars int) (string, retrieval.Source)
}

// Summary is the result of one audio request.
type Summary struct {
	AudioURL string `json:"audioUrl"`
	Script   string `json:"script"`
	Cached   bool   `json:"cached"`
}

// Service generates and caches audio summaries.
type Service struct {
	completer   Completer
	synthesizer Synthesizer
	resolver    ContextResolver
	cache       *blobcache.Cache
	logger      *zap.Logger
}

// New creates the audio summary service.
func New(completer Completer, synthesizer Synthesizer, resolver ContextResolver,
	cache *blobcache.Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		completer:   completer,
		synthesizer: synthesizer,
		resolver:    resolver,
		cache:       cache,
		logger:      logger,
	}
}

// Summarize returns the audio summary for a report, generating and
// caching it on first request. summaryHint is the report's stored
// short summary; it stands in for the document when retrieval comes
// back thin.
func (s *Service) Summarize(ctx context.Context, docURL, title, summaryHint string) (Summary, error) {
	if docURL == "" {
		return Summary{}, fmt.Errorf("report url is required")
	}

	if obj, ok, err := s.cache.Lookup(ctx, cacheNamespace, docURL, ".mp3"); err != nil {
		return Summary{}, fmt.Errorf("audio cache lookup: %w", err)
	} else if ok {
		s.logger.Debug("audio cache hit", zap.String("url", docURL))
		return Summary{AudioURL: obj.Location, Script: cachedScript, Cached: true}, nil
	}

	contextText, source := s.resolver.Context(ctx, docURL,
		"key findings and main arguments of this report", scrape.DeepContextChars)
	shortForm := source == retrieval.SourceUnavailable || len(contextText) < shortContextChars
	if shortForm && summaryHint != "" {
		contextText = summaryHint
	}

	script, err := s.generateScript(ctx, title, contextText, shortForm)
	if err != nil {
		return Summary{}, fmt.Errorf("generate script: %w", err)
	}

	payload, err := s.synthesizer.Synthesize(ctx, script)
	if err != nil {
		return Summary{}, fmt.Errorf("synthesize audio: %w", err)
	}

	obj, err := s.cache.Store(ctx, cacheNamespace, docURL, ".mp3", payload, "audio/mpeg")
	if err != nil {
		return Summary{}, fmt.Errorf("store audio: %w", err)
	}

	s.logger.Info("generated audio summary",
		zap.String("url", docURL),
		zap.String("context_source", string(source)),
		zap.Int("script_chars", len(script)),
		zap.Int("audio_bytes", len(payload)),
	)

	return Summary{AudioURL: obj.Location, Script: script, Cached: false}, nil
}

// generateScript asks the model for a spoken-word summary. Thin or
// missing context switches to a short-form script built around the
// title, so the listener is never read a hallucinated deep dive.
func (s *Service) generateScript(ctx context.Context, title, contextText string, shortForm bool) (string, error) {
	script, err := s.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: scriptSystemPrompt},
			{Role: "user", Content: buildScriptPrompt(title, contextText, shortForm)},
		},
		MaxTokens:   scriptMaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return "", fmt.Errorf("model returned empty script")
	}
	return script, nil
}

const scriptSystemPrompt = "You write spoken-word scripts for audio briefings aimed at " +
	"professional crypto analysts. The register is dense and technical; use the domain's " +
	"own vocabulary. Output only the words to be read aloud. No stage directions, no " +
	"markdown, no preamble such as 'Here is a summary', and no filler phrases like " +
	"'in today's fast-moving world'."

func buildScriptPrompt(title, contextText string, shortForm bool) string {
	var b strings.Builder
	if shortForm {
		b.WriteString("Write a brief spoken introduction (3-4 sentences) for a research report ")
		fmt.Fprintf(&b, "titled %q. ", title)
		b.WriteString("Introduce the topic and why it matters. Do not invent specific findings.\n")
		if strings.TrimSpace(contextText) != "" {
			b.WriteString("\nAvailable context:\n" + contextText)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Write a spoken summary (about 150 words) of the research report %q. ", title)
	b.WriteString("Cover the key findings and main arguments from the content below.\n\n")
	b.WriteString("Report content:\n" + contextText)
	return b.String()
}
