package pgx

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/ontoforge/ontoforge/pkg/common"
	"github.com/ontoforge/ontoforge/pkg/store"
)

// Unit embeddings are generated per batch so one corpus pass does not
// hold thousands of vectors in flight at once.
const unitEmbedBatchSize = 64

// RecordUnits persists text units for provenance and similarity search.
// Units are keyed by their stable ID, so re-ingesting is a no-op.
func (s *GraphDBStorage) RecordUnits(ctx context.Context, units []common.Unit) error {
	return store.ChunkRange(len(units), unitEmbedBatchSize, func(start, end int) error {
		batch := units[start:end]

		var vectors []pgvector.Vector
		if s.aiClient != nil {
			inputs := make([][]byte, len(batch))
			for i, u := range batch {
				inputs[i] = []byte(u.Text)
			}
			embeddings, err := store.GenerateEmbeddings(ctx, s.aiClient, inputs)
			if err != nil {
				return fmt.Errorf("failed to embed units: %w", err)
			}
			vectors = make([]pgvector.Vector, len(embeddings))
			for i, emb := range embeddings {
				vectors[i] = pgvector.NewVector(emb)
			}
		}

		s.dbLock.Lock()
		defer s.dbLock.Unlock()
		for i, u := range batch {
			var embedding any
			if vectors != nil {
				embedding = vectors[i]
			}
			_, err := s.conn.Exec(ctx, `
				INSERT INTO units (id, doc_id, idx, content, embedding)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO NOTHING
			`, u.ID, u.DocID, u.Index, u.Text, embedding)
			if err != nil {
				return fmt.Errorf("failed to record unit %s: %w", u.ID, err)
			}
		}
		return nil
	})
}
