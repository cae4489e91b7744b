// Package vectorstore provides the embedded semantic index for report chunks.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("reportd.vectorstore")

// Sentinel errors.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is a text chunk to index.
type Document struct {
	// ID is the unique identifier for the chunk.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata holds filterable key-value pairs. The "url" key scopes
	// chunks to one source document.
	Metadata map[string]string
}

// Result is one similarity-search match.
type Result struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Store is the interface for semantic index operations.
type Store interface {
	// Add indexes documents, embedding their content.
	Add(ctx context.Context, docs []Document) error

	// Search returns up to k matches for query, restricted by the
	// where metadata filter, in descending similarity order.
	Search(ctx context.Context, query string, k int, where map[string]string) ([]Result, error)
}

// Config holds chromem store configuration.
type Config struct {
	// Path is the directory for persistent storage.
	Path string

	// Collection is the collection name. Default: "reports".
	Collection string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ChromemStore implements Store using chromem-go, an embeddable pure-Go
// vector database with persistence to disk and no external service.
type ChromemStore struct {
	db         *chromem.DB
	embedder   Embedder
	collection string
	logger     *zap.Logger
}

var _ Store = (*ChromemStore)(nil)

// NewChromemStore creates a persistent chromem-backed store.
func NewChromemStore(cfg Config, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "reports"
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("vector store initialized",
		zap.String("path", cfg.Path),
		zap.String("collection", cfg.Collection),
		zap.Bool("compress", cfg.Compress),
	)

	return &ChromemStore{
		db:         db,
		embedder:   embedder,
		collection: cfg.Collection,
		logger:     logger,
	}, nil
}

// embeddingFunc adapts the Embedder to chromem's query-time interface.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Add indexes documents. Embeddings are generated in one batch before
// insertion so a provider failure leaves the collection untouched.
func (s *ChromemStore) Add(ctx context.Context, docs []Document) error {
	ctx, span := tracer.Start(ctx, "ChromemStore.Add")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	collection, err := s.db.GetOrCreateCollection(s.collection, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting collection %s: %w", s.collection, err)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			return fmt.Errorf("%w: document at index %d has no ID", ErrInvalidConfig, i)
		}
		chromemDocs[i] = chromem.Document{
			ID:        id,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: vectors[i],
		}
	}

	// Concurrency of 1: embeddings are already computed.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	s.logger.Debug("indexed documents",
		zap.String("collection", s.collection),
		zap.Int("count", len(docs)),
	)

	return nil
}

// Search performs filtered similarity search in the collection.
// An absent collection or an empty one yields zero results, not an
// error: an unindexed document is a normal state for callers.
func (s *ChromemStore) Search(ctx context.Context, query string, k int, where map[string]string) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	collection := s.db.GetCollection(s.collection, s.embeddingFunc())
	if collection == nil {
		return []Result{}, nil
	}

	// chromem requires nResults <= document count.
	docCount := collection.Count()
	if docCount == 0 {
		return []Result{}, nil
	}
	if k > docCount {
		k = docCount
	}

	matches, err := collection.Query(ctx, query, k, where, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.collection, err)
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			ID:       m.ID,
			Content:  m.Content,
			Score:    m.Similarity,
			Metadata: m.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("matches", len(results)))
	return results, nil
}
