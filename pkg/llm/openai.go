package llm

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIEmbedderConfig configures the hosted embedding alternative.
type OpenAIEmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIEmbedder is a drop-in remote alternative to the Ollama embedder
// with the same degrade-to-empty failure semantics.
type OpenAIEmbedder struct {
	config OpenAIEmbedderConfig
	client openai.Client
	logger *slog.Logger
}

func NewOpenAIEmbedder(config OpenAIEmbedderConfig, logger *slog.Logger) *OpenAIEmbedder {
	if config.Model == "" {
		config.Model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &OpenAIEmbedder{
		config: config,
		client: openai.NewClient(opts...),
		logger: logger,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) []float32 {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.config.Model),
	})
	if err != nil {
		e.logger.Warn("embedding failed, chunk will not be searchable", "model", e.config.Model, "error", err)
		return nil
	}
	if len(resp.Data) == 0 {
		return nil
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.Embed(ctx, text)
	}
	return out, nil
}
