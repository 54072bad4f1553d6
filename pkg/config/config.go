package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Store     StoreConfig     `yaml:"store"`
	Splitter  SplitterConfig  `yaml:"splitter"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	UI        UIConfig        `yaml:"ui"`
}

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type EmbedderConfig struct {
	Provider       string `yaml:"provider"` // ollama or openai
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type StoreConfig struct {
	Backend     string `yaml:"backend"` // json or postgres
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`
	TableName   string `yaml:"table_name"`
	VectorDim   int    `yaml:"vector_dim"`
}

type SplitterConfig struct {
	Strategy     string `yaml:"strategy"` // recursive or fixed
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	Mode           string  `yaml:"mode"` // standard, reranker or multiquery
	SearchLimit    int     `yaml:"search_limit"`
	MinScore       float64 `yaml:"min_score"`
	RerankMinScore float64 `yaml:"rerank_min_score"`
	RerankModel    string  `yaml:"rerank_model"`
	ContextLength  int     `yaml:"context_length"`
}

type ScraperConfig struct {
	MaxDepth  int     `yaml:"max_depth"`
	RateLimit float64 `yaml:"rate_limit"`
}

type UIConfig struct {
	Streaming bool `yaml:"streaming"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/grimoire/config.yaml"),
			"/etc/grimoire/config.yaml",
		}
		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	config := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Embedder.Provider == "" {
		config.Embedder.Provider = "ollama"
	}
	if config.Embedder.Model == "" {
		config.Embedder.Model = "nomic-embed-text:latest"
	}
	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = config.LLM.BaseURL
	}
	if config.Embedder.TimeoutSeconds == 0 {
		config.Embedder.TimeoutSeconds = 30
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "json"
	}
	if config.Store.DataDir == "" {
		config.Store.DataDir = "knowledge"
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "chunks"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 768
	}

	if config.Splitter.Strategy == "" {
		config.Splitter.Strategy = "recursive"
	}
	if config.Splitter.ChunkSize == 0 && config.Splitter.ChunkOverlap == 0 {
		config.Splitter.ChunkOverlap = 200
	}
	if config.Splitter.ChunkSize == 0 {
		config.Splitter.ChunkSize = 1000
	}

	if config.Retrieval.Mode == "" {
		config.Retrieval.Mode = "standard"
	}
	if config.Retrieval.SearchLimit == 0 {
		config.Retrieval.SearchLimit = 5
	}
	if config.Retrieval.RerankMinScore == 0 {
		config.Retrieval.RerankMinScore = 0.5
	}
	if config.Retrieval.RerankModel == "" {
		config.Retrieval.RerankModel = config.LLM.Model
	}
	if config.Retrieval.ContextLength == 0 {
		config.Retrieval.ContextLength = 2048
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 3
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
		config.Embedder.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.DatabaseURL = dbURL
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.Embedder.APIKey = key
	}
	if dir := os.Getenv("GRIMOIRE_DATA_DIR"); dir != "" {
		config.Store.DataDir = dir
	}
}
