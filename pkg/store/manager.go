package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mxbl/grimoire/internal/types"
)

const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
)

// ManagerConfig selects and parameterizes the index backend.
type ManagerConfig struct {
	Backend    string
	DataDir    string // json backend: one <name>.json file per knowledge base
	ConnString string // postgres backend
	TableName  string
	VectorDim  int
}

// Manager owns the lifecycle of named knowledge bases: opening (and
// loading) them on first use, listing what exists and deleting backing
// storage. Open indexes are cached so concurrent callers share one
// in-memory collection per name.
type Manager struct {
	config ManagerConfig
	logger *slog.Logger

	mu   sync.Mutex
	open map[string]types.Index
	pool *pgxpool.Pool
}

func NewManager(ctx context.Context, config ManagerConfig, logger *slog.Logger) (*Manager, error) {
	if config.Backend == "" {
		config.Backend = BackendJSON
	}
	if config.DataDir == "" {
		config.DataDir = "knowledge"
	}
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		config: config,
		logger: logger,
		open:   make(map[string]types.Index),
	}

	switch config.Backend {
	case BackendJSON:
	case BackendPostgres:
		pool, err := pgxpool.New(ctx, config.ConnString)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		m.pool = pool
		if err := m.initSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Backend)
	}
	return m, nil
}

func (m *Manager) initSchema(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			kb_name TEXT NOT NULL,
			source TEXT,
			content TEXT,
			embedding vector(%d)
		)`, m.config.TableName, m.config.VectorDim)
	if _, err := m.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_kb_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`, m.config.TableName, m.config.TableName)
	if _, err := m.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Open returns the index for name, loading it from backing storage the
// first time it is seen. The index is cached only after Load completes,
// so concurrent callers never see a half-initialized collection.
func (m *Manager) Open(ctx context.Context, name string) (types.Index, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.open[name]; ok {
		return idx, nil
	}
	var idx types.Index
	if m.config.Backend == BackendPostgres {
		idx = newPGIndex(m.pool, m.config.TableName, name, m.logger)
	} else {
		idx = NewJSONIndex(m.indexPath(name), m.logger)
	}
	if err := idx.Load(ctx); err != nil {
		return nil, err
	}
	m.open[name] = idx
	return idx, nil
}

// List names every knowledge base present in backing storage, including
// ones never opened by this process.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	if m.config.Backend == BackendPostgres {
		rows, err := m.pool.Query(ctx, fmt.Sprintf("SELECT DISTINCT kb_name FROM %s ORDER BY kb_name", m.config.TableName))
		if err != nil {
			return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
		}
		defer rows.Close()
		var names []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return nil, fmt.Errorf("failed to scan knowledge base name: %w", err)
			}
			names = append(names, name)
		}
		return names, rows.Err()
	}

	entries, err := os.ReadDir(m.config.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names, nil
}

// Delete removes a knowledge base and its backing storage. Deleting a
// name that does not exist is not an error.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.open, name)
	m.mu.Unlock()

	if m.config.Backend == BackendPostgres {
		if _, err := m.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE kb_name = $1", m.config.TableName), name); err != nil {
			return fmt.Errorf("failed to delete knowledge base %q: %w", name, err)
		}
		return nil
	}
	if err := os.Remove(m.indexPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete knowledge base %q: %w", name, err)
	}
	return nil
}

func (m *Manager) Close() {
	if m.pool != nil {
		m.pool.Close()
	}
}

func (m *Manager) indexPath(name string) string {
	return filepath.Join(m.config.DataDir, name+".json")
}

// validateName keeps knowledge-base names inside the data directory.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("knowledge base name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid knowledge base name %q", name)
	}
	return nil
}
