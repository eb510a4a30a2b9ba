package pgx

import (
	"context"
	"fmt"
	"sync"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// GraphDBStorage persists the instance graph in PostgreSQL. Nodes and
// edges live in relational tables with uniqueness on their identity, so
// upserts are plain ON CONFLICT updates. Node content is embedded with
// pgvector to serve similarity-based context retrieval.
type GraphDBStorage struct {
	conn     pgxIConn
	pool     *pgxpool.Pool
	aiClient ai.GraphAIClient
	dbLock   sync.Mutex
}

// NewGraphDBStorageParams configures the PostgreSQL connection. The AI
// client provides embeddings for similarity search; a nil client disables
// embeddings and context retrieval degrades to recency order.
type NewGraphDBStorageParams struct {
	DSN      string
	AIClient ai.GraphAIClient
}

// NewGraphDBStorage connects to PostgreSQL, applies pending schema
// migrations and returns a ready storage.
func NewGraphDBStorage(ctx context.Context, params NewGraphDBStorageParams) (*GraphDBStorage, error) {
	if err := RunMigrations(params.DSN); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, params.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	return &GraphDBStorage{
		conn:     pool,
		pool:     pool,
		aiClient: params.AIClient,
	}, nil
}

// NewGraphDBStorageWithConnection creates a storage over an existing
// connection, used by tests.
func NewGraphDBStorageWithConnection(conn pgxIConn, aiClient ai.GraphAIClient) *GraphDBStorage {
	return &GraphDBStorage{
		conn:     conn,
		aiClient: aiClient,
	}
}

// Ping verifies the connection is still usable.
func (s *GraphDBStorage) Ping(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *GraphDBStorage) Close(ctx context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
