package llm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxbl/grimoire/pkg/llm"
)

func TestNewOllamaEmbedderDefaults(t *testing.T) {
	embedder, err := llm.NewOllamaEmbedder(llm.EmbedderConfig{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}

// A broken backend must not surface an error; the text degrades to an
// empty vector and stays out of search results.
func TestEmbedDegradesOnBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder, err := llm.NewOllamaEmbedder(llm.EmbedderConfig{BaseURL: server.URL}, nil)
	require.NoError(t, err)

	vec := embedder.Embed(context.Background(), "some text")
	assert.Empty(t, vec)
}

func TestEmbedBatchContinuesPastFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder, err := llm.NewOllamaEmbedder(llm.EmbedderConfig{BaseURL: server.URL}, nil)
	require.NoError(t, err)

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, vec := range vectors {
		assert.Empty(t, vec)
	}
}

func TestEmbedBatchCancellation(t *testing.T) {
	embedder, err := llm.NewOllamaEmbedder(llm.EmbedderConfig{BaseURL: "http://localhost:1"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = embedder.EmbedBatch(ctx, []string{"one", "two"})
	assert.ErrorIs(t, err, context.Canceled)
}
