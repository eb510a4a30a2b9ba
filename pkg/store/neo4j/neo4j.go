package neo4j

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ontoforge/ontoforge/pkg/store"
)

// GraphDBStorage persists the instance graph in Neo4j. Nodes carry their
// identity key in the _key property; upserts MERGE on (label, _key) under
// a per-label uniqueness constraint so re-ingesting a corpus never
// duplicates, even with concurrent writers.
type GraphDBStorage struct {
	driver neo4j.DriverWithContext

	mu               sync.Mutex
	constrained      map[string]struct{}
	createConstraint func(ctx context.Context, label string) error
}

// NewGraphDBStorageParams configures the Neo4j connection.
type NewGraphDBStorageParams struct {
	URI      string
	Username string
	Password string
}

// NewGraphDBStorage connects to Neo4j and verifies the connection.
func NewGraphDBStorage(ctx context.Context, params NewGraphDBStorageParams) (*GraphDBStorage, error) {
	driver, err := neo4j.NewDriverWithContext(
		params.URI,
		neo4j.BasicAuth(params.Username, params.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return &GraphDBStorage{driver: driver}, nil
}

// keyConstraintQuery declares _key unique per label. MERGE alone is not
// race-free: two transactions can both miss the match and both create.
// The constraint makes concurrent same-key upserts serialize instead.
func keyConstraintQuery(label string) string {
	return fmt.Sprintf("CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n._key IS UNIQUE", label)
}

// ensureKeyConstraint creates the uniqueness constraint for a label once
// per storage lifetime, before its first node write. The lock is held
// across the creation so no write MERGEs before the constraint exists.
func (s *GraphDBStorage) ensureKeyConstraint(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.constrained == nil {
		s.constrained = make(map[string]struct{})
	}
	if _, done := s.constrained[label]; done {
		return nil
	}

	create := s.createConstraint
	if create == nil {
		create = s.runKeyConstraint
	}
	if err := create(ctx, label); err != nil {
		return fmt.Errorf("failed to ensure key constraint on %s: %w", label, err)
	}
	s.constrained[label] = struct{}{}
	return nil
}

func (s *GraphDBStorage) runKeyConstraint(ctx context.Context, label string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, keyConstraintQuery(label), nil)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

// UpsertNode creates or refreshes a node identified by (label, key).
func (s *GraphDBStorage) UpsertNode(ctx context.Context, ref store.NodeRef, attrs map[string]string) error {
	label := store.SanitizeLabel(ref.Label)
	if label == "" {
		return fmt.Errorf("empty node label")
	}
	if err := s.ensureKeyConstraint(ctx, label); err != nil {
		return err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MERGE (n:%s {_key: $key})
		SET n += $attrs
	`, label)

	result, err := session.Run(ctx, query, map[string]any{
		"key":   ref.Key,
		"attrs": attributeMap(attrs),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert node %s(%s): %w", ref.Label, ref.Key, err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("failed to upsert node %s(%s): %w", ref.Label, ref.Key, err)
	}
	return nil
}

// UpsertEdge creates or refreshes an edge between two existing nodes. An
// edge whose endpoints are missing is a no-op; ingestion always writes
// nodes before edges.
func (s *GraphDBStorage) UpsertEdge(ctx context.Context, label string, source store.NodeRef, target store.NodeRef, attrs map[string]string) error {
	relLabel := store.SanitizeLabel(label)
	srcLabel := store.SanitizeLabel(source.Label)
	tgtLabel := store.SanitizeLabel(target.Label)
	if relLabel == "" || srcLabel == "" || tgtLabel == "" {
		return fmt.Errorf("empty edge or endpoint label")
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (a:%s {_key: $srcKey})
		MATCH (b:%s {_key: $tgtKey})
		MERGE (a)-[r:%s]->(b)
		SET r += $attrs
	`, srcLabel, tgtLabel, relLabel)

	result, err := session.Run(ctx, query, map[string]any{
		"srcKey": source.Key,
		"tgtKey": target.Key,
		"attrs":  attributeMap(attrs),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert edge %s: %w", label, err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("failed to upsert edge %s: %w", label, err)
	}
	return nil
}

// CountNodes returns the number of nodes with the given label.
func (s *GraphDBStorage) CountNodes(ctx context.Context, label string) (int64, error) {
	l := store.SanitizeLabel(label)
	if l == "" {
		return 0, fmt.Errorf("empty node label")
	}
	return s.count(ctx, fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS c", l))
}

// CountEdges returns the number of edges with the given label.
func (s *GraphDBStorage) CountEdges(ctx context.Context, label string) (int64, error) {
	l := store.SanitizeLabel(label)
	if l == "" {
		return 0, fmt.Errorf("empty edge label")
	}
	return s.count(ctx, fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r) AS c", l))
}

func (s *GraphDBStorage) count(ctx context.Context, query string) (int64, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return 0, err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("count query returned no rows")
	}
	c, ok := result.Record().Values[0].(int64)
	if !ok {
		return 0, fmt.Errorf("count query returned unexpected type %T", result.Record().Values[0])
	}
	return c, nil
}

// RunCypher executes a read-only statement and returns the rows as maps.
func (s *GraphDBStorage) RunCypher(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, stmt, params)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	for result.Next(ctx) {
		record := result.Record()
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = record.Values[i]
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Ping verifies the connection is still usable.
func (s *GraphDBStorage) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

// Close releases the driver and its connection pool.
func (s *GraphDBStorage) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func attributeMap(attrs map[string]string) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[store.SanitizeLabel(k)] = v
	}
	return out
}
