package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, Config{Model: "m"}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{BaseURL: "https://x"}.Validate(), ErrInvalidConfig)
	assert.NoError(t, Config{BaseURL: "https://x", Model: "m"}.Validate())
}

func TestNewService_InvalidConfig(t *testing.T) {
	_, err := NewService(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestEmbedDocuments_EmptyInput(t *testing.T) {
	svc, err := NewService(Config{
		BaseURL: "http://localhost:8080/v1",
		Model:   "text-embedding-3-small",
	})
	require.NoError(t, err)

	_, err = svc.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = svc.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
