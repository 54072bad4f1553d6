// Package retriever orchestrates the retrieval pipeline: ingestion
// (split, embed, index, persist) and retrieval (embed, search, and per
// mode expand or rerank). It is the only place that knows the end-to-end
// ordering; the components it drives do not depend on each other.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/mxbl/grimoire/internal/models"
	"github.com/mxbl/grimoire/internal/types"
	"github.com/mxbl/grimoire/pkg/store"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	// ModeStandard is plain vector search.
	ModeStandard Mode = "standard"
	// ModeReranker passes the vector search candidates through the LLM
	// relevance judge.
	ModeReranker Mode = "reranker"
	// ModeMultiQuery searches every query variant, merges by chunk id
	// keeping the best score, then reranks the merged set.
	ModeMultiQuery Mode = "multiquery"
)

// ParseMode maps a user-supplied mode string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStandard, ModeReranker, ModeMultiQuery:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown retrieval mode %q", s)
	}
}

// Config bounds search results.
type Config struct {
	SearchLimit    int     // max candidates per search
	MinScore       float64 // similarity floor for vector search
	RerankMinScore float64 // relevance floor for the judge
}

// Engine is the stateless retrieval orchestrator; all durable state lives
// in the index manager.
type Engine struct {
	splitter types.Splitter
	embedder types.Embedder
	indexes  *store.Manager
	reranker types.Reranker
	expander types.Expander
	config   Config
	logger   *slog.Logger
}

func NewEngine(
	splitter types.Splitter,
	embedder types.Embedder,
	indexes *store.Manager,
	reranker types.Reranker,
	expander types.Expander,
	config Config,
	logger *slog.Logger,
) *Engine {
	if config.SearchLimit <= 0 {
		config.SearchLimit = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		splitter: splitter,
		embedder: embedder,
		indexes:  indexes,
		reranker: reranker,
		expander: expander,
		config:   config,
		logger:   logger,
	}
}

// Ingest splits content, embeds every chunk, appends the chunks to the
// named knowledge base and persists it. Persistence is all-or-nothing: a
// cancellation anywhere before Save leaves the stored index untouched.
// Chunks whose embedding failed are stored unembedded and logged; they
// are skipped by search until re-ingested.
func (e *Engine) Ingest(ctx context.Context, kb, source, content string) ([]models.DocumentChunk, error) {
	if source == "" {
		source = kb
	}
	texts, err := e.splitter.Split(content)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.DocumentChunk, len(texts))
	embedded := 0
	for i, text := range texts {
		chunks[i] = models.DocumentChunk{
			ID:        uuid.NewString(),
			Text:      text,
			Source:    source,
			Embedding: vectors[i],
		}
		if chunks[i].Embedded() {
			embedded++
		}
	}
	if embedded < len(chunks) {
		e.logger.Warn("some chunks failed to embed and will not be searchable",
			"kb", kb, "source", source, "failed", len(chunks)-embedded, "total", len(chunks))
	}

	idx, err := e.indexes.Open(ctx, kb)
	if err != nil {
		return nil, err
	}
	if err := idx.AddDocuments(ctx, chunks); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := idx.Save(ctx); err != nil {
		return nil, err
	}
	e.logger.Info("ingested document", "kb", kb, "source", source, "chunks", len(chunks))
	return chunks, nil
}

// Retrieve returns the chunks most relevant to query from the named
// knowledge bases, ranked per the given mode. Backend unavailability is
// never fatal here: the worst case is fewer or zero chunks.
func (e *Engine) Retrieve(ctx context.Context, query string, mode Mode, kbs ...string) ([]models.DocumentChunk, error) {
	if len(kbs) == 0 {
		return nil, nil
	}
	switch mode {
	case ModeStandard, "":
		return e.search(ctx, query, kbs)
	case ModeReranker:
		candidates, err := e.search(ctx, query, kbs)
		if err != nil {
			return nil, err
		}
		return e.reranker.Rerank(ctx, query, candidates, e.config.RerankMinScore)
	case ModeMultiQuery:
		candidates, err := e.multiQuery(ctx, query, kbs)
		if err != nil {
			return nil, err
		}
		return e.reranker.Rerank(ctx, query, candidates, e.config.RerankMinScore)
	default:
		return nil, fmt.Errorf("unknown retrieval mode %q", mode)
	}
}

// multiQuery searches each query variant and merges the result sets,
// deduplicating by chunk id and keeping the highest score per id.
func (e *Engine) multiQuery(ctx context.Context, query string, kbs []string) ([]models.DocumentChunk, error) {
	best := make(map[string]models.DocumentChunk)
	var order []string
	for _, variant := range e.expander.Expand(ctx, query) {
		results, err := e.search(ctx, variant, kbs)
		if err != nil {
			return nil, err
		}
		for _, chunk := range results {
			prev, seen := best[chunk.ID]
			if !seen {
				order = append(order, chunk.ID)
			}
			if !seen || chunk.Score > prev.Score {
				best[chunk.ID] = chunk
			}
		}
	}
	merged := make([]models.DocumentChunk, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged, nil
}

// search embeds the query and runs similarity search over every named
// knowledge base, merging by score. A query that fails to embed or a
// base that fails to search degrades to no results from that step.
func (e *Engine) search(ctx context.Context, query string, kbs []string) ([]models.DocumentChunk, error) {
	vector := e.embedder.Embed(ctx, query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		e.logger.Warn("query embedding failed, retrieving nothing", "query", query)
		return nil, nil
	}

	var all []models.DocumentChunk
	for _, kb := range kbs {
		idx, err := e.indexes.Open(ctx, kb)
		if err != nil {
			return nil, err
		}
		results, err := idx.Search(ctx, vector, e.config.SearchLimit, e.config.MinScore)
		if err != nil {
			e.logger.Warn("search failed, skipping knowledge base", "kb", kb, "error", err)
			continue
		}
		all = append(all, results...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	if len(all) > e.config.SearchLimit {
		all = all[:e.config.SearchLimit]
	}
	return all, nil
}

// Indexes lists the available knowledge bases.
func (e *Engine) Indexes(ctx context.Context) ([]string, error) {
	return e.indexes.List(ctx)
}

// DeleteIndex removes a knowledge base and its backing storage.
func (e *Engine) DeleteIndex(ctx context.Context, kb string) error {
	return e.indexes.Delete(ctx, kb)
}
