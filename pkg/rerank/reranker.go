// Package rerank implements a second-pass relevance filter: each
// retrieval candidate is scored against the query by an LLM judge with a
// fixed rubric, then filtered and sorted by that score.
package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/mxbl/grimoire/internal/models"
)

const rubricPrompt = `You judge how relevant a document is to a query.

Query: %s

Document:
%s

Score the document's relevance using exactly this scale:
1.0 - directly answers the query
0.8 - mostly answers the query
0.6 - topically related and contains some relevant detail
0.4 - same topic but does not answer the query
0.2 - only superficial keyword overlap
0.0 - unrelated

Respond with a single number from the scale and nothing else.`

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?|-?\.\d+`)

// Config configures the relevance judge model.
type Config struct {
	Model         string
	BaseURL       string // Ollama server URL
	Temperature   float64
	ContextLength int
}

// Reranker scores candidates one at a time; the backing model server is
// assumed to be a single local instance, so no batching or fan-out.
type Reranker struct {
	config Config
	model  llms.Model
	logger *slog.Logger
}

// New creates a Reranker backed by an Ollama model.
func New(config Config, logger *slog.Logger) (*Reranker, error) {
	applyDefaults(&config)
	model, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
		ollama.WithRunnerNumCtx(config.ContextLength),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reranker model: %w", err)
	}
	return NewWithModel(config, model, logger), nil
}

// NewWithModel creates a Reranker over an existing model, which lets
// tests substitute a fake judge.
func NewWithModel(config Config, model llms.Model, logger *slog.Logger) *Reranker {
	applyDefaults(&config)
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{config: config, model: model, logger: logger}
}

func applyDefaults(config *Config) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.ContextLength == 0 {
		config.ContextLength = 2048
	}
}

// Rerank scores every candidate, drops those below minScore and returns
// the rest sorted by descending score. Ties keep candidate order
// (sort.SliceStable). Judge failures score 0.0 and are logged; the only
// returned error is context cancellation.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []models.DocumentChunk, minScore float64) ([]models.DocumentChunk, error) {
	var kept []models.DocumentChunk
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc.Score = r.score(ctx, query, doc.Text)
		if doc.Score >= minScore {
			kept = append(kept, doc)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	return kept, nil
}

func (r *Reranker) score(ctx context.Context, query, text string) float64 {
	prompt := fmt.Sprintf(rubricPrompt, query, text)
	answer, err := llms.GenerateFromSinglePrompt(ctx, r.model, prompt,
		llms.WithTemperature(r.config.Temperature),
	)
	if err != nil {
		r.logger.Warn("rerank judge failed, scoring 0", "model", r.config.Model, "error", err)
		return 0.0
	}
	return parseScore(answer)
}

// parseScore extracts the first number from the judge's answer, clamped
// to [0, 1]. Anything unparsable scores 0.0.
func parseScore(answer string) float64 {
	match := numberPattern.FindString(answer)
	if match == "" {
		return 0.0
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0.0
	}
	if score < 0 {
		return 0.0
	}
	if score > 1 {
		return 1.0
	}
	return score
}
