package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "mistral"
  max_tokens: 1000
  temperature: 0.5

embedder:
  provider: "ollama"
  model: "nomic-embed-text:latest"

store:
  backend: "json"
  data_dir: "testdata/kb"
  vector_dim: 768

splitter:
  strategy: "recursive"
  chunk_size: 500
  chunk_overlap: 100

retrieval:
  mode: "reranker"
  search_limit: 10
  min_score: 0.3

ui:
  streaming: false
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "mistral", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "testdata/kb", config.Store.DataDir)
	assert.Equal(t, 500, config.Splitter.ChunkSize)
	assert.Equal(t, "reranker", config.Retrieval.Mode)
	assert.Equal(t, 10, config.Retrieval.SearchLimit)
	assert.False(t, config.UI.Streaming)
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  model: llama3\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "ollama", config.Embedder.Provider)
	assert.Equal(t, config.LLM.BaseURL, config.Embedder.BaseURL)
	assert.Equal(t, "json", config.Store.Backend)
	assert.Equal(t, "chunks", config.Store.TableName)
	assert.Equal(t, 768, config.Store.VectorDim)
	assert.Equal(t, 1000, config.Splitter.ChunkSize)
	assert.Equal(t, 200, config.Splitter.ChunkOverlap)
	assert.Equal(t, "standard", config.Retrieval.Mode)
	assert.Equal(t, 5, config.Retrieval.SearchLimit)
	// The rerank model follows the chat model unless set explicitly
	assert.Equal(t, "llama3", config.Retrieval.RerankModel)

	assert.Empty(t, config.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name          string
		config        Config
		expectedErrs  int
		errorMessages []string
	}{
		{
			name: "valid config",
			config: Config{
				LLM: LLMConfig{
					BaseURL:     "http://localhost:11434",
					MaxTokens:   1000,
					Temperature: 0.7,
				},
				Embedder: EmbedderConfig{
					Provider:       "ollama",
					TimeoutSeconds: 30,
				},
				Store: StoreConfig{
					Backend:   "json",
					DataDir:   "knowledge",
					VectorDim: 768,
				},
				Splitter: SplitterConfig{
					Strategy:     "recursive",
					ChunkSize:    1000,
					ChunkOverlap: 200,
				},
				Retrieval: RetrievalConfig{
					Mode:           "standard",
					SearchLimit:    5,
					RerankMinScore: 0.5,
				},
				Scraper: ScraperConfig{
					MaxDepth:  3,
					RateLimit: 2.0,
				},
			},
			expectedErrs: 0,
		},
		{
			name: "invalid config",
			config: Config{
				LLM: LLMConfig{
					BaseURL:     "",
					MaxTokens:   5000, // Invalid
					Temperature: 3.0,  // Invalid
				},
				Embedder: EmbedderConfig{
					Provider:       "openai", // Missing API key
					TimeoutSeconds: 30,
				},
				Store: StoreConfig{
					Backend:   "postgres", // Missing URL
					VectorDim: -1,         // Invalid
				},
				Splitter: SplitterConfig{
					Strategy:     "recursive",
					ChunkSize:    500,
					ChunkOverlap: 500, // Invalid
				},
				Retrieval: RetrievalConfig{
					Mode:           "fancy", // Invalid
					SearchLimit:    5,
					RerankMinScore: 1.5, // Invalid
				},
				Scraper: ScraperConfig{
					MaxDepth:  3,
					RateLimit: 2.0,
				},
			},
			expectedErrs: 9,
			errorMessages: []string{
				"llm.base_url: Ollama base URL is required",
				"llm.max_tokens: max_tokens must be between 1 and 4096",
				"llm.temperature: temperature must be between 0 and 2",
				"embedder.api_key: api_key is required for the openai provider",
				"store.database_url: database_url is required for the postgres backend",
				"store.vector_dim: vector_dim must be positive",
				"splitter.chunk_overlap: chunk_overlap must be non-negative and less than chunk_size",
				"retrieval.mode: unknown mode: fancy",
				"retrieval.rerank_min_score: rerank_min_score must be between 0 and 1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := tt.config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			if tt.errorMessages != nil {
				for i, msg := range tt.errorMessages {
					assert.Contains(t, errors[i].Error(), msg)
				}
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.Embedder.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Store.DatabaseURL)
}
