package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig configures the Ollama embedding backend.
type EmbedderConfig struct {
	Model   string
	BaseURL string // Ollama server URL
	Timeout time.Duration
}

// OllamaEmbedder converts text to dense vectors through a local Ollama
// server, one request per text. Service failures never escape: the
// affected text degrades to an empty vector, which search then skips.
type OllamaEmbedder struct {
	config EmbedderConfig
	client *ollama.LLM
	logger *slog.Logger
}

// NewOllamaEmbedder creates an embedder, defaulting unset config fields.
func NewOllamaEmbedder(config EmbedderConfig, logger *slog.Logger) (*OllamaEmbedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
		ollama.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	return &OllamaEmbedder{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// Embed returns the embedding for text, or an empty vector when the
// backend is unreachable or errors.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) []float32 {
	vectors, err := e.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		e.logger.Warn("embedding failed, chunk will not be searchable", "model", e.config.Model, "error", err)
		return nil
	}
	if len(vectors) == 0 {
		return nil
	}
	return vectors[0]
}

// EmbedBatch embeds texts sequentially, preserving order one-to-one with
// the input. A failed item yields an empty vector without aborting the
// rest; only context cancellation stops the batch.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.Embed(ctx, text)
	}
	return out, nil
}
