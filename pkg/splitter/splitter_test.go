package splitter_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxbl/grimoire/pkg/splitter"
)

func TestFixedSplitter_Window(t *testing.T) {
	s, err := splitter.NewFixed(splitter.Config{ChunkSize: 4, Overlap: 1})
	require.NoError(t, err)

	chunks, err := s.Split("abcdefghij")
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)
}

func TestFixedSplitter_ShortInput(t *testing.T) {
	s, err := splitter.NewFixed(splitter.Config{ChunkSize: 100, Overlap: 10})
	require.NoError(t, err)

	chunks, err := s.Split("short")
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, chunks)
}

func TestRecursiveSplitter_WordBoundaries(t *testing.T) {
	s, err := splitter.NewRecursive(splitter.Config{ChunkSize: 10, Overlap: 0})
	require.NoError(t, err)

	chunks, err := s.Split("aaaa bbbb cccc")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa bbbb", "cccc"}, chunks)
}

func TestRecursiveSplitter_Overlap(t *testing.T) {
	s, err := splitter.NewRecursive(splitter.Config{ChunkSize: 10, Overlap: 5})
	require.NoError(t, err)

	chunks, err := s.Split("aaaa bbbb cccc")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa bbbb", "bbbb cccc"}, chunks)
}

func TestRecursiveSplitter_UnbrokenRun(t *testing.T) {
	// No separator below character level applies, so the run is cut per
	// character with the configured overlap.
	s, err := splitter.NewRecursive(splitter.Config{ChunkSize: 5, Overlap: 1})
	require.NoError(t, err)

	chunks, err := s.Split("abcdefghijkl")
	require.NoError(t, err)
	assert.Equal(t, []string{"abcde", "efghi", "ijkl"}, chunks)
}

func TestRecursiveSplitter_Paragraphs(t *testing.T) {
	s, err := splitter.NewRecursive(splitter.Config{ChunkSize: 12, Overlap: 0})
	require.NoError(t, err)

	chunks, err := s.Split("first para\n\nsecond para\n\nthird")
	require.NoError(t, err)
	assert.Equal(t, []string{"first para", "second para", "third"}, chunks)
}

func TestRecursiveSplitter_ChunkSizeBound(t *testing.T) {
	texts := []string{
		"The quick brown fox jumps over the lazy dog. It was not amused, not even slightly.",
		"one\ntwo\nthree four five six seven eight nine ten\n\neleven twelve",
		strings.Repeat("x", 137),
		"a, b, c, d, e, f, g, h, i, j, k, l, m, n, o, p",
	}
	for _, size := range []int{8, 20, 50} {
		s, err := splitter.NewRecursive(splitter.Config{ChunkSize: size, Overlap: size / 4})
		require.NoError(t, err)
		for _, text := range texts {
			chunks, err := s.Split(text)
			require.NoError(t, err)
			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), size, "text %q size %d chunk %q", text, size, c)
			}
		}
	}
}

func TestRecursiveSplitter_Coverage(t *testing.T) {
	// Every chunk is a verbatim substring, the first chunk starts the text
	// and the last chunk ends it: nothing is lost between chunks.
	text := "Alpha beta gamma. Delta epsilon zeta, eta theta. Iota kappa lambda mu."
	s, err := splitter.NewRecursive(splitter.Config{ChunkSize: 25, Overlap: 5})
	require.NoError(t, err)

	chunks, err := s.Split(text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.True(t, strings.HasPrefix(text, chunks[0]))
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
	pos := 0
	prevEnd := 0
	for _, c := range chunks {
		idx := strings.Index(text[pos:], c)
		require.GreaterOrEqual(t, idx, 0, "chunk %q not found after offset %d", c, pos)
		start := pos + idx
		// Consecutive chunks may only be separated by the separator that
		// was consumed at the boundary, never by dropped content.
		assert.LessOrEqual(t, start-prevEnd, 2, "gap before chunk %q", c)
		prevEnd = start + len(c)
		pos = start
	}
	assert.Equal(t, len(text), prevEnd)
}

func TestSplitter_EmptyInput(t *testing.T) {
	rec, err := splitter.NewRecursive(splitter.Config{ChunkSize: 10})
	require.NoError(t, err)
	fixed, err := splitter.NewFixed(splitter.Config{ChunkSize: 10})
	require.NoError(t, err)

	chunks, err := rec.Split("")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = fixed.Split("")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitter_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config splitter.Config
	}{
		{"overlap equals size", splitter.Config{ChunkSize: 10, Overlap: 10}},
		{"overlap above size", splitter.Config{ChunkSize: 10, Overlap: 11}},
		{"negative overlap", splitter.Config{ChunkSize: 10, Overlap: -1}},
		{"negative size", splitter.Config{ChunkSize: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := splitter.NewRecursive(tt.config)
			assert.Error(t, err)
			_, err = splitter.NewFixed(tt.config)
			assert.Error(t, err)
		})
	}
}
