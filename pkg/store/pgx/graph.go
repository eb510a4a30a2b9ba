package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/ontoforge/ontoforge/pkg/logger"
	"github.com/ontoforge/ontoforge/pkg/store"
)

// UpsertNode creates or refreshes a node identified by (label, key).
// Attribute maps are merged so attributes written by earlier units survive.
func (s *GraphDBStorage) UpsertNode(ctx context.Context, ref store.NodeRef, attrs map[string]string) error {
	label := store.SanitizeLabel(ref.Label)
	if label == "" {
		return fmt.Errorf("empty node label")
	}

	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode node attributes: %w", err)
	}

	content := fmt.Sprintf("%s: %s", label, store.RenderAttributes(attrs))
	embedding, err := s.embed(ctx, content)
	if err != nil {
		return err
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err = s.conn.Exec(ctx, `
		INSERT INTO nodes (label, key, attrs, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (label, key) DO UPDATE SET
			attrs = nodes.attrs || EXCLUDED.attrs,
			content = EXCLUDED.content,
			embedding = COALESCE(EXCLUDED.embedding, nodes.embedding),
			updated_at = now()
	`, label, ref.Key, attrsJSON, content, embedding)
	if err != nil {
		return fmt.Errorf("failed to upsert node %s(%s): %w", ref.Label, ref.Key, err)
	}
	return nil
}

// UpsertEdge creates or refreshes an edge between two existing nodes.
func (s *GraphDBStorage) UpsertEdge(ctx context.Context, label string, source store.NodeRef, target store.NodeRef, attrs map[string]string) error {
	relLabel := store.SanitizeLabel(label)
	if relLabel == "" {
		return fmt.Errorf("empty edge label")
	}

	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode edge attributes: %w", err)
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	tag, err := s.conn.Exec(ctx, `
		INSERT INTO edges (label, source_id, target_id, attrs)
		SELECT $1, src.id, tgt.id, $2
		FROM nodes src, nodes tgt
		WHERE src.label = $3 AND src.key = $4
		  AND tgt.label = $5 AND tgt.key = $6
		ON CONFLICT (label, source_id, target_id) DO UPDATE SET
			attrs = edges.attrs || EXCLUDED.attrs,
			updated_at = now()
	`, relLabel, attrsJSON,
		store.SanitizeLabel(source.Label), source.Key,
		store.SanitizeLabel(target.Label), target.Key)
	if err != nil {
		return fmt.Errorf("failed to upsert edge %s: %w", label, err)
	}
	if tag.RowsAffected() == 0 {
		logger.Debug("[Store] Edge endpoints not found, skipping",
			"edge", label, "source", source.Key, "target", target.Key)
	}
	return nil
}

// CountNodes returns the number of nodes with the given label.
func (s *GraphDBStorage) CountNodes(ctx context.Context, label string) (int64, error) {
	var count int64
	err := s.conn.QueryRow(ctx,
		"SELECT count(*) FROM nodes WHERE label = $1",
		store.SanitizeLabel(label),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count nodes %s: %w", label, err)
	}
	return count, nil
}

// CountEdges returns the number of edges with the given label.
func (s *GraphDBStorage) CountEdges(ctx context.Context, label string) (int64, error) {
	var count int64
	err := s.conn.QueryRow(ctx,
		"SELECT count(*) FROM edges WHERE label = $1",
		store.SanitizeLabel(label),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count edges %s: %w", label, err)
	}
	return count, nil
}

func (s *GraphDBStorage) embed(ctx context.Context, content string) (*pgvector.Vector, error) {
	if s.aiClient == nil {
		return nil, nil
	}
	embedding, err := s.aiClient.GenerateEmbedding(ctx, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	v := pgvector.NewVector(embedding)
	return &v, nil
}
