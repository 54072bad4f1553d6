package models

// DocumentChunk is the unit of indexed text: a bounded piece of a source
// document together with its embedding. Score is only meaningful on values
// returned from a search or rerank and is never persisted.
type DocumentChunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Embedding []float32 `json:"embedding,omitempty"`
	Score     float64   `json:"-"`
}

// Embedded reports whether the chunk carries a usable embedding. Chunks
// without one are skipped by similarity search.
func (c DocumentChunk) Embedded() bool {
	return len(c.Embedding) > 0
}

// SourceDocument is raw content handed to ingestion by the chat layer,
// before splitting and embedding.
type SourceDocument struct {
	Name    string
	Content string
}
