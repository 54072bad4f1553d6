package splitter

// FixedSplitter slides a window of ChunkSize runes over the text with a
// step of ChunkSize-Overlap, ignoring document structure. Useful when
// separator-aware chunking buys nothing, e.g. log dumps.
type FixedSplitter struct {
	config Config
}

// NewFixed creates a FixedSplitter. A zero ChunkSize defaults to 1000; an
// Overlap at or above ChunkSize is rejected.
func NewFixed(config Config) (*FixedSplitter, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &FixedSplitter{config: config}, nil
}

func (s *FixedSplitter) Split(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	runes := []rune(text)
	step := s.config.ChunkSize - s.config.Overlap
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + s.config.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
