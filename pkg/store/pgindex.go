package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mxbl/grimoire/internal/models"
)

// pgIndex is the pgvector-backed knowledge base. Adds are buffered in
// memory and flushed by Save in a single transaction, so a cancelled
// ingestion never leaves partial rows behind. Search is pushed down to
// the database using the cosine distance operator.
type pgIndex struct {
	pool   *pgxpool.Pool
	table  string
	name   string
	logger *slog.Logger

	mu      sync.Mutex
	pending []models.DocumentChunk
}

func newPGIndex(pool *pgxpool.Pool, table, name string, logger *slog.Logger) *pgIndex {
	return &pgIndex{pool: pool, table: table, name: name, logger: logger}
}

func (idx *pgIndex) AddDocuments(_ context.Context, chunks []models.DocumentChunk) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.pending = append(idx.pending, chunks...)
	return nil
}

// Save flushes all buffered chunks in one transaction.
func (idx *pgIndex) Save(ctx context.Context) error {
	idx.mu.Lock()
	pending := idx.pending
	idx.pending = nil
	idx.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, kb_name, source, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`, idx.table)

	for _, chunk := range pending {
		var embedding any
		if chunk.Embedded() {
			embedding = pgvector.NewVector(chunk.Embedding)
		}
		if _, err := tx.Exec(ctx, stmt, chunk.ID, idx.name, chunk.Source, chunk.Text, embedding); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load discards buffered, unsaved chunks; persisted rows are the
// authoritative collection and are queried directly by Search.
func (idx *pgIndex) Load(_ context.Context) error {
	idx.mu.Lock()
	idx.pending = nil
	idx.mu.Unlock()
	return nil
}

func (idx *pgIndex) Search(ctx context.Context, query []float32, limit int, minScore float64) ([]models.DocumentChunk, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	// The score floor is part of the query; LIMIT applies after filtering.
	stmt := fmt.Sprintf(`
		SELECT id, source, content, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE kb_name = $2 AND embedding IS NOT NULL
			AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $4`, idx.table)

	rows, err := idx.pool.Query(ctx, stmt, pgvector.NewVector(query), idx.name, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.DocumentChunk
	for rows.Next() {
		var chunk models.DocumentChunk
		if err := rows.Scan(&chunk.ID, &chunk.Source, &chunk.Text, &chunk.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, chunk)
	}
	return results, rows.Err()
}

func (idx *pgIndex) Count(ctx context.Context) int {
	var count int
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE kb_name = $1", idx.table)
	if err := idx.pool.QueryRow(ctx, stmt, idx.name).Scan(&count); err != nil {
		if err != pgx.ErrNoRows {
			idx.logger.Warn("failed to count chunks", "kb", idx.name, "error", err)
		}
		return 0
	}
	idx.mu.Lock()
	count += len(idx.pending)
	idx.mu.Unlock()
	return count
}
