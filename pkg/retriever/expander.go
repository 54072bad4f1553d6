package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// maxVariants caps the expansion output, original query included.
const maxVariants = 3

// HeuristicExpander broadens recall without any model call: the original
// query, an interrogative form, and a keyword reformulation.
type HeuristicExpander struct{}

func NewHeuristicExpander() *HeuristicExpander { return &HeuristicExpander{} }

func (e *HeuristicExpander) Expand(_ context.Context, query string) []string {
	variants := []string{query}

	trimmed := strings.TrimSpace(query)
	if trimmed != "" && !strings.HasSuffix(trimmed, "?") {
		variants = append(variants, trimmed+"?")
	}

	if keywords := contentWords(trimmed, maxVariants); len(keywords) > 0 {
		variants = append(variants, "Tell me about "+strings.Join(keywords, " "))
	}

	if len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}
	return variants
}

var expansionStopwords = map[string]bool{
	"about": true, "after": true, "before": true, "being": true,
	"could": true, "does": true, "from": true, "have": true, "into": true,
	"should": true, "that": true, "their": true, "there": true,
	"these": true, "this": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "with": true, "would": true, "your": true,
}

// contentWords picks up to max words longer than three characters that
// are not stopwords, in query order.
func contentWords(query string, max int) []string {
	var words []string
	for _, field := range strings.Fields(query) {
		word := strings.ToLower(strings.Trim(field, ".,;:!?\"'()"))
		if len(word) <= 3 || expansionStopwords[word] {
			continue
		}
		words = append(words, word)
		if len(words) == max {
			break
		}
	}
	return words
}

// LLMExpander asks the chat model for alternative phrasings and falls
// back to the heuristic variants whenever the model is unavailable or
// answers with nothing usable.
type LLMExpander struct {
	model    llms.Model
	fallback *HeuristicExpander
	logger   *slog.Logger
}

func NewLLMExpander(model llms.Model, logger *slog.Logger) *LLMExpander {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExpander{
		model:    model,
		fallback: NewHeuristicExpander(),
		logger:   logger,
	}
}

const expandPrompt = `Rewrite the following search query in two different ways that preserve its meaning. Output one rewrite per line with no numbering or commentary.

Query: %s`

func (e *LLMExpander) Expand(ctx context.Context, query string) []string {
	answer, err := llms.GenerateFromSinglePrompt(ctx, e.model, fmt.Sprintf(expandPrompt, query))
	if err != nil {
		e.logger.Warn("query expansion failed, using heuristic variants", "error", err)
		return e.fallback.Expand(ctx, query)
	}

	variants := []string{query}
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == query {
			continue
		}
		variants = append(variants, line)
		if len(variants) == maxVariants {
			break
		}
	}
	if len(variants) == 1 {
		return e.fallback.Expand(ctx, query)
	}
	return variants
}
