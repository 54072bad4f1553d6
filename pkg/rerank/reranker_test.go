package rerank_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/mxbl/grimoire/internal/models"
	"github.com/mxbl/grimoire/pkg/rerank"
)

// fakeJudge answers the rubric prompt based on which document text it
// finds inside the prompt.
type fakeJudge struct {
	answers map[string]string
	err     error
	calls   int
}

func (f *fakeJudge) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var prompt string
	for _, part := range messages[len(messages)-1].Parts {
		if text, ok := part.(llms.TextContent); ok {
			prompt += text.Text
		}
	}
	answer := "0.0"
	for needle, a := range f.answers {
		if strings.Contains(prompt, needle) {
			answer = a
			break
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: answer}},
	}, nil
}

func (f *fakeJudge) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func chunks(texts ...string) []models.DocumentChunk {
	out := make([]models.DocumentChunk, len(texts))
	for i, t := range texts {
		out[i] = models.DocumentChunk{ID: t, Text: t}
	}
	return out
}

func TestRerank_FilterAndSort(t *testing.T) {
	judge := &fakeJudge{answers: map[string]string{
		"alpha doc": "1.0",
		"bravo doc": "0.6",
		"delta doc": "0.0",
	}}
	r := rerank.NewWithModel(rerank.Config{}, judge, nil)

	out, err := r.Rerank(context.Background(), "the query",
		chunks("delta doc", "bravo doc", "alpha doc"), 0.5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "alpha doc", out[0].Text)
	assert.Equal(t, 1.0, out[0].Score)
	assert.Equal(t, "bravo doc", out[1].Text)
	assert.Equal(t, 0.6, out[1].Score)
	assert.Equal(t, 3, judge.calls)
}

func TestRerank_MinScoreBoundary(t *testing.T) {
	judge := &fakeJudge{answers: map[string]string{"borderline": "0.5"}}
	r := rerank.NewWithModel(rerank.Config{}, judge, nil)

	out, err := r.Rerank(context.Background(), "q", chunks("borderline"), 0.5)
	require.NoError(t, err)
	assert.Len(t, out, 1, "score equal to minScore survives")

	out, err = r.Rerank(context.Background(), "q", chunks("borderline"), 0.6)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRerank_StableTies(t *testing.T) {
	judge := &fakeJudge{answers: map[string]string{
		"first":  "0.8",
		"second": "0.8",
		"third":  "0.8",
	}}
	r := rerank.NewWithModel(rerank.Config{}, judge, nil)

	out, err := r.Rerank(context.Background(), "q", chunks("first", "second", "third"), 0)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "first", out[0].Text)
	assert.Equal(t, "second", out[1].Text)
	assert.Equal(t, "third", out[2].Text)
}

func TestRerank_JudgeFailureScoresZero(t *testing.T) {
	judge := &fakeJudge{err: errors.New("model server down")}
	r := rerank.NewWithModel(rerank.Config{}, judge, nil)

	out, err := r.Rerank(context.Background(), "q", chunks("anything"), 0.5)
	require.NoError(t, err, "service failure must not propagate")
	assert.Empty(t, out)

	// With minScore 0 the failed document survives at score 0.
	out, err = r.Rerank(context.Background(), "q", chunks("anything"), 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0.0, out[0].Score)
}

func TestRerank_UnparsableAnswer(t *testing.T) {
	judge := &fakeJudge{answers: map[string]string{
		"garbled": "I think this is quite relevant!",
		"wrapped": "Relevance: 0.8 as per the scale",
		"big":     "9000",
	}}
	r := rerank.NewWithModel(rerank.Config{}, judge, nil)

	out, err := r.Rerank(context.Background(), "q", chunks("garbled", "wrapped", "big"), 0)
	require.NoError(t, err)
	require.Len(t, out, 3)

	byText := map[string]float64{}
	for _, c := range out {
		byText[c.Text] = c.Score
	}
	assert.Equal(t, 0.0, byText["garbled"])
	assert.Equal(t, 0.8, byText["wrapped"], "number embedded in prose is extracted")
	assert.Equal(t, 1.0, byText["big"], "out-of-range scores clamp to [0,1]")
}

func TestRerank_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := rerank.NewWithModel(rerank.Config{}, &fakeJudge{}, nil)
	_, err := r.Rerank(ctx, "q", chunks("a"), 0)
	assert.ErrorIs(t, err, context.Canceled)
}
