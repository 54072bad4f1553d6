package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators is the priority order used by the recursive splitter:
// paragraph break, line break, sentence end, clause end, word boundary and
// finally per-character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", ", ", " ", ""}

// Config holds the sizing knobs shared by all splitters. Sizes count runes.
type Config struct {
	ChunkSize int
	Overlap   int
}

func (c Config) validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be non-negative and less than chunk size, got overlap=%d size=%d", c.Overlap, c.ChunkSize)
	}
	return nil
}

// RecursiveSplitter splits text on the highest-priority separator that
// occurs in it, greedily merges the fragments into chunks of at most
// ChunkSize, and re-splits any chunk still over the limit with the
// remaining lower-priority separators. The per-character separator at the
// end of the list guarantees termination.
type RecursiveSplitter struct {
	config     Config
	separators []string
}

// NewRecursive creates a RecursiveSplitter. A zero ChunkSize defaults to
// 1000; an Overlap at or above ChunkSize is rejected.
func NewRecursive(config Config) (*RecursiveSplitter, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &RecursiveSplitter{
		config:     config,
		separators: DefaultSeparators,
	}, nil
}

func (s *RecursiveSplitter) Split(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	var out []string
	for _, chunk := range s.split(text, s.separators) {
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out, nil
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	sep, rest := pickSeparator(text, separators)
	chunks := s.merge(cut(text, sep), sep)
	if len(rest) == 0 {
		return chunks
	}
	var out []string
	for _, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > s.config.ChunkSize {
			out = append(out, s.split(chunk, rest)...)
		} else {
			out = append(out, chunk)
		}
	}
	return out
}

// pickSeparator returns the first separator that occurs in text, plus the
// lower-priority separators after it. The empty separator always matches.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

func cut(text, sep string) []string {
	// strings.Split with an empty separator yields one fragment per rune.
	return strings.Split(text, sep)
}

// merge greedily joins fragments into chunks bounded by ChunkSize. When a
// chunk is emitted, fragments are dropped from the front of the window
// until the retained tail is within the overlap budget and leaves room for
// the incoming fragment, so consecutive chunks share close to Overlap runes.
func (s *RecursiveSplitter) merge(frags []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var chunks []string
	var window []string
	total := 0

	joinCost := func(frag string) int {
		n := utf8.RuneCountInString(frag)
		if len(window) > 0 {
			n += sepLen
		}
		return n
	}

	for _, frag := range frags {
		if total+joinCost(frag) > s.config.ChunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, sep))
			for total > s.config.Overlap || (total+joinCost(frag) > s.config.ChunkSize && total > 0) {
				head := utf8.RuneCountInString(window[0])
				if len(window) > 1 {
					head += sepLen
				}
				total -= head
				window = window[1:]
			}
		}
		total += joinCost(frag)
		window = append(window, frag)
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, sep))
	}
	return chunks
}
