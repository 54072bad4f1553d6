package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mxbl/grimoire/internal/models"
)

// JSONIndex is a knowledge base backed by a single JSON file: an array of
// DocumentChunk records, overwritten wholesale on every Save. Search is
// brute-force cosine over the in-memory collection, which is the right
// trade-off for per-user, locally-sized knowledge bases.
//
// A RWMutex gives single-writer/multiple-readers discipline: searches run
// concurrently, AddDocuments/Save/Load serialize.
type JSONIndex struct {
	mu     sync.RWMutex
	path   string
	chunks []models.DocumentChunk
	logger *slog.Logger
}

func NewJSONIndex(path string, logger *slog.Logger) *JSONIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONIndex{path: path, logger: logger}
}

// AddDocuments appends chunks to the in-memory collection. Nothing is
// persisted until Save.
func (idx *JSONIndex) AddDocuments(_ context.Context, chunks []models.DocumentChunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.chunks = append(idx.chunks, chunks...)
	return nil
}

// Save overwrites the backing file with the full in-memory collection.
// The write lock is held across marshal and file replacement, keeping
// writers to the file serialized; the new contents land via a temp file
// renamed over the target, so the file is never left half-written.
func (idx *JSONIndex) Save(_ context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	chunks := idx.chunks
	if chunks == nil {
		chunks = []models.DocumentChunk{}
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(idx.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), idx.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

// Load replaces the in-memory collection with the file contents. A missing
// file is an empty knowledge base; a corrupt file is logged and likewise
// treated as empty so no partial data is ever surfaced.
func (idx *JSONIndex) Load(_ context.Context) error {
	data, err := os.ReadFile(idx.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			idx.logger.Warn("failed to read index file, starting empty", "path", idx.path, "error", err)
		}
		idx.replace(nil)
		return nil
	}
	var chunks []models.DocumentChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		idx.logger.Warn("corrupt index file, starting empty", "path", idx.path, "error", err)
		idx.replace(nil)
		return nil
	}
	idx.replace(chunks)
	return nil
}

func (idx *JSONIndex) replace(chunks []models.DocumentChunk) {
	idx.mu.Lock()
	idx.chunks = chunks
	idx.mu.Unlock()
}

// Search scores every embedded chunk against the query vector, drops
// scores below minScore and returns the top limit chunks in descending
// score order. Ties keep insertion order.
func (idx *JSONIndex) Search(_ context.Context, query []float32, limit int, minScore float64) ([]models.DocumentChunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var results []models.DocumentChunk
	for _, chunk := range idx.chunks {
		if !chunk.Embedded() {
			continue
		}
		score := Cosine(query, chunk.Embedding)
		if score < minScore {
			continue
		}
		chunk.Score = score
		results = append(results, chunk)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (idx *JSONIndex) Count(_ context.Context) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}
