package types

import (
	"context"

	"github.com/mxbl/grimoire/internal/models"
)

// Splitter turns raw document text into ordered chunk strings.
// Implementations must reject invalid size/overlap configuration rather
// than loop.
type Splitter interface {
	Split(text string) ([]string, error)
}

// Embedder converts text into dense vectors. Transport and service
// failures are absorbed: the affected text yields an empty vector and is
// excluded from similarity search. EmbedBatch preserves input order
// one-to-one and only returns an error when ctx is cancelled.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is a named, persisted collection of chunks with similarity search.
// AddDocuments never persists implicitly; Save overwrites the backing
// storage wholesale; Load replaces the in-memory collection, treating
// missing or corrupt backing data as empty.
type Index interface {
	AddDocuments(ctx context.Context, chunks []models.DocumentChunk) error
	Save(ctx context.Context) error
	Load(ctx context.Context) error
	Search(ctx context.Context, query []float32, limit int, minScore float64) ([]models.DocumentChunk, error)
	Count(ctx context.Context) int
}

// Reranker rescores candidates against the query with an LLM relevance
// judge, drops those below minScore and sorts descending. Judge failures
// score 0.0; the returned error is context cancellation only.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []models.DocumentChunk, minScore float64) ([]models.DocumentChunk, error)
}

// Expander produces alternative phrasings of a query. The result is never
// empty, starts with the original query and holds at most three entries.
type Expander interface {
	Expand(ctx context.Context, query string) []string
}
