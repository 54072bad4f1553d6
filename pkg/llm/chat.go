package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/mxbl/grimoire/internal/models"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
	BaseURL        string // Ollama server URL
}

// ChatEngine answers user queries with the retrieved knowledge-base
// context injected into the prompt.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewChatEngine creates a ChatEngine with the given configuration.
func NewChatEngine(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.Temperature <= 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a helpful assistant with access to the user's documents. Answer questions based on the provided context; say so when the context does not cover the question."
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// NewChatEngineWithModel is like NewChatEngine but answers through the
// given model instead of dialing Ollama.
func NewChatEngineWithModel(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	engine, err := NewChatEngine(config)
	if err != nil {
		return nil, err
	}
	engine.llm = model
	return engine, nil
}

// Chat generates a response grounded in the retrieved chunks.
func (ce *ChatEngine) Chat(ctx context.Context, query string, chunks []models.DocumentChunk) (string, error) {
	response, err := ce.llm.GenerateContent(ctx, ce.messages(query, chunks),
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}
	return response.Choices[0].Content, nil
}

// ChatStream generates a response and delivers it incrementally on the
// returned channel, which is closed when the answer is complete.
func (ce *ChatEngine) ChatStream(ctx context.Context, query string, chunks []models.DocumentChunk) (<-chan string, error) {
	resultChan := make(chan string)

	go func() {
		defer close(resultChan)
		_, err := ce.llm.GenerateContent(ctx, ce.messages(query, chunks),
			llms.WithTemperature(ce.config.Temperature),
			llms.WithMaxTokens(ce.config.MaxTokens),
			llms.WithStreamingFunc(func(ctx context.Context, piece []byte) error {
				select {
				case resultChan <- string(piece):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil && ctx.Err() == nil {
			resultChan <- fmt.Sprintf("Error: %v", err)
		}
	}()

	return resultChan, nil
}

func (ce *ChatEngine) messages(query string, chunks []models.DocumentChunk) []llms.MessageContent {
	var contextBuilder strings.Builder
	for _, chunk := range chunks {
		fmt.Fprintf(&contextBuilder, "Source: %s\n%s\n\n", chunk.Source, chunk.Text)
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, ce.config.SystemTemplate),
	}
	if contextBuilder.Len() > 0 {
		content = append(content, llms.TextParts(schema.ChatMessageTypeSystem,
			fmt.Sprintf("Relevant documents:\n%s", contextBuilder.String())))
	}
	return append(content, llms.TextParts(schema.ChatMessageTypeHuman, query))
}

// FormatSources lists the distinct sources backing an answer, for
// citation next to the reply.
func FormatSources(chunks []models.DocumentChunk) string {
	seen := make(map[string]bool)
	var sources []string
	for _, chunk := range chunks {
		if chunk.Source != "" && !seen[chunk.Source] {
			sources = append(sources, chunk.Source)
			seen[chunk.Source] = true
		}
	}
	if len(sources) == 0 {
		return ""
	}
	return fmt.Sprintf("Sources:\n%s", strings.Join(sources, "\n"))
}
