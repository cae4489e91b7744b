package vectorstore_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/vectorstore"
)

// testEmbedder returns deterministic normalized vectors.
type testEmbedder struct {
	vectorSize int
}

func (e *testEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.makeEmbedding(text)
	}
	return vectors, nil
}

func (e *testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.makeEmbedding(text), nil
}

func (e *testEmbedder) makeEmbedding(text string) []float32 {
	embedding := make([]float32, e.vectorSize)
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	var sumSq float32
	for i := range embedding {
		embedding[i] = float32((hash+i)%100) / 100.0
		sumSq += embedding[i] * embedding[i]
	}
	// chromem requires unit vectors.
	if sumSq > 0 {
		norm := float32(1.0) / sqrt32(sumSq)
		for i := range embedding {
			embedding[i] *= norm
		}
	}
	return embedding
}

func sqrt32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	z := x / 2
	for i := 0; i < 10; i++ {
		z = (z + x/z) / 2
	}
	return z
}

// failingEmbedder always errors.
type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding provider down")
}

func (failingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding provider down")
}

func newTestStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.Config{
		Path:       t.TempDir(),
		Collection: "test_reports",
	}, &testEmbedder{vectorSize: 64}, zap.NewNop())
	require.NoError(t, err)

	return store
}

func TestNewChromemStore_RequiresEmbedder(t *testing.T) {
	_, err := vectorstore.NewChromemStore(vectorstore.Config{Path: t.TempDir()}, nil, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestNewChromemStore_RequiresPath(t *testing.T) {
	_, err := vectorstore.NewChromemStore(vectorstore.Config{}, &testEmbedder{vectorSize: 8}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestChromemStore_AddAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Add(ctx, []vectorstore.Document{
		{ID: "a-0", Content: "bitcoin etf inflows", Metadata: map[string]string{"url": "https://a.example/report"}},
		{ID: "a-1", Content: "ethereum staking yields", Metadata: map[string]string{"url": "https://a.example/report"}},
		{ID: "b-0", Content: "stablecoin regulation", Metadata: map[string]string{"url": "https://b.example/report"}},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "bitcoin etf inflows", 5, map[string]string{"url": "https://a.example/report"})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		assert.Equal(t, "https://a.example/report", r.Metadata["url"])
	}
}

func TestChromemStore_SearchEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_SearchClampsK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Add(ctx, []vectorstore.Document{
		{ID: "only", Content: "single chunk", Metadata: map[string]string{"url": "https://a.example"}},
	})
	require.NoError(t, err)

	// k larger than the collection must not error.
	results, err := store.Search(ctx, "single chunk", 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStore_AddValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Add(ctx, nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)

	err = store.Add(ctx, []vectorstore.Document{{Content: "no id"}})
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestChromemStore_AddEmbeddingFailure(t *testing.T) {
	store, err := vectorstore.NewChromemStore(vectorstore.Config{
		Path: t.TempDir(),
	}, failingEmbedder{}, zap.NewNop())
	require.NoError(t, err)

	err = store.Add(context.Background(), []vectorstore.Document{
		{ID: "x", Content: "text"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorstore.ErrEmbeddingFailed)
}

func TestChromemStore_SearchValidation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Search(context.Background(), "", 5, nil)
	require.Error(t, err)

	_, err = store.Search(context.Background(), "query", 0, nil)
	require.Error(t, err)
}
