package pgx

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// RetrieveContext returns a text rendering of the stored nodes and units
// most similar to the question, for answer synthesis. Without an AI
// client there are no embeddings; retrieval falls back to the most
// recently updated nodes.
func (s *GraphDBStorage) RetrieveContext(ctx context.Context, question string, limit int) (string, error) {
	if limit <= 0 {
		limit = 10
	}

	var b strings.Builder

	if s.aiClient == nil {
		if err := s.appendRecentNodes(ctx, &b, limit); err != nil {
			return "", err
		}
		return b.String(), nil
	}

	embedding, err := s.aiClient.GenerateEmbedding(ctx, []byte(question))
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.conn.Query(ctx, `
		SELECT content
		FROM nodes
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`, vec, limit)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve similar nodes: %w", err)
	}
	defer rows.Close()

	b.WriteString("Entities:\n")
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "- %s\n", content)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	unitRows, err := s.conn.Query(ctx, `
		SELECT content
		FROM units
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`, vec, limit)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve similar units: %w", err)
	}
	defer unitRows.Close()

	b.WriteString("Passages:\n")
	for unitRows.Next() {
		var content string
		if err := unitRows.Scan(&content); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(content))
	}
	if err := unitRows.Err(); err != nil {
		return "", err
	}

	return b.String(), nil
}

func (s *GraphDBStorage) appendRecentNodes(ctx context.Context, b *strings.Builder, limit int) error {
	rows, err := s.conn.Query(ctx, `
		SELECT content
		FROM nodes
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return fmt.Errorf("failed to retrieve recent nodes: %w", err)
	}
	defer rows.Close()

	b.WriteString("Entities:\n")
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return err
		}
		fmt.Fprintf(b, "- %s\n", content)
	}
	return rows.Err()
}
