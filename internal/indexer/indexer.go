// Package indexer builds the semantic index from the record store.
package indexer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/blobcache"
	"github.com/fyrsmithlabs/reportd/internal/reports"
	"github.com/fyrsmithlabs/reportd/internal/vectorstore"
)

// Chunking parameters. Overlap preserves sentence continuity across
// chunk boundaries so a match near an edge still carries its context.
const (
	chunkChars   = 1500
	chunkOverlap = 200
)

// Lister supplies the reports to index.
type Lister interface {
	List(ctx context.Context) ([]reports.Report, error)
}

// Fetcher turns a URL into plain text.
type Fetcher interface {
	Text(ctx context.Context, pageURL string, maxChars int) (string, error)
}

// Adder accepts chunks into the semantic index.
type Adder interface {
	Add(ctx context.Context, docs []vectorstore.Document) error
}

// Summary reports what one indexing run did.
type Summary struct {
	Indexed  int
	Skipped  int
	Chunks   int
	Failures []string
}

// Indexer scrapes and chunks every report into the vector store.
type Indexer struct {
	lister  Lister
	fetcher Fetcher
	adder   Adder
	logger  *zap.Logger
}

// New creates an indexer.
func New(lister Lister, fetcher Fetcher, adder Adder, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{lister: lister, fetcher: fetcher, adder: adder, logger: logger}
}

// Run indexes every listable report. Per-report failures are collected
// rather than fatal; only listing failure or context cancellation
// aborts the run.
func (ix *Indexer) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	list, err := ix.lister.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing reports: %w", err)
	}

	for _, r := range list {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		docURL := r.DocumentURL()
		if docURL == "" {
			summary.Skipped++
			continue
		}

		n, err := ix.indexOne(ctx, r, docURL)
		if err != nil {
			summary.Skipped++
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", docURL, err))
			ix.logger.Warn("indexing report failed, continuing",
				zap.Int("id", r.ID), zap.String("url", docURL), zap.Error(err))
			continue
		}

		summary.Indexed++
		summary.Chunks += n
		ix.logger.Info("indexed report",
			zap.Int("id", r.ID),
			zap.String("title", r.Title),
			zap.Int("chunks", n),
		)
	}

	return summary, nil
}

// indexOne scrapes, chunks, and stores one report. Returns the chunk count.
func (ix *Indexer) indexOne(ctx context.Context, r reports.Report, docURL string) (int, error) {
	text, err := ix.fetcher.Text(ctx, docURL, 0)
	if err != nil {
		return 0, fmt.Errorf("scraping: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("document yielded no text")
	}

	chunks := Chunk(text, chunkChars, chunkOverlap)
	key := blobcache.Key(docURL)

	docs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectorstore.Document{
			ID:      fmt.Sprintf("%s-%d", key, i),
			Content: c,
			Metadata: map[string]string{
				"url":   docURL,
				"title": r.Title,
				"chunk": fmt.Sprintf("%d", i),
			},
		}
	}

	if err := ix.adder.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("storing chunks: %w", err)
	}

	return len(chunks), nil
}

// Chunk splits text into pieces of at most size bytes with the given
// overlap between consecutive pieces.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap >= size {
		overlap = size / 4
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
