package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Embedder config
	switch c.Embedder.Provider {
	case "ollama", "openai":
	default:
		errors = append(errors, ValidationError{
			Field:   "embedder.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.Embedder.Provider),
		})
	}

	if c.Embedder.Provider == "openai" && c.Embedder.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "embedder.api_key",
			Message: "api_key is required for the openai provider",
		})
	}

	if c.Embedder.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	// Validate Store config
	switch c.Store.Backend {
	case "json":
		if c.Store.DataDir == "" {
			errors = append(errors, ValidationError{
				Field:   "store.data_dir",
				Message: "data_dir is required for the json backend",
			})
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.database_url",
				Message: "database_url is required for the postgres backend",
			})
		} else if _, err := url.Parse(c.Store.DatabaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "store.database_url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Store.Backend),
		})
	}

	if c.Store.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	// Validate Splitter config
	switch c.Splitter.Strategy {
	case "recursive", "fixed":
	default:
		errors = append(errors, ValidationError{
			Field:   "splitter.strategy",
			Message: fmt.Sprintf("unknown strategy: %s", c.Splitter.Strategy),
		})
	}

	if c.Splitter.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "splitter.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "splitter.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate Retrieval config
	switch c.Retrieval.Mode {
	case "standard", "reranker", "multiquery":
	default:
		errors = append(errors, ValidationError{
			Field:   "retrieval.mode",
			Message: fmt.Sprintf("unknown mode: %s", c.Retrieval.Mode),
		})
	}

	if c.Retrieval.SearchLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.search_limit",
			Message: "search_limit must be positive",
		})
	}

	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.min_score",
			Message: "min_score must be between 0 and 1",
		})
	}

	if c.Retrieval.RerankMinScore < 0 || c.Retrieval.RerankMinScore > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.rerank_min_score",
			Message: "rerank_min_score must be between 0 and 1",
		})
	}

	// Validate Scraper config
	if c.Scraper.MaxDepth < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_depth",
			Message: "max_depth must be positive",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	return errors
}
