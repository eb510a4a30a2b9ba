package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ontoforge/ontoforge/internal/util"
	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/common"
	"github.com/ontoforge/ontoforge/pkg/loader"
	"github.com/ontoforge/ontoforge/pkg/logger"
	"github.com/ontoforge/ontoforge/pkg/ontology"
	"github.com/ontoforge/ontoforge/pkg/store"
)

// IngestReport summarizes one ingestion pass over a corpus. A unit that
// keeps failing extraction is counted, not fatal; the pass only errors
// when the graph store itself becomes unavailable.
type IngestReport struct {
	DocsTotal  int `json:"docs_total"`
	DocsLoaded int `json:"docs_loaded"`
	DocsFailed int `json:"docs_failed"`

	UnitsTotal    int `json:"units_total"`
	UnitsIngested int `json:"units_ingested"`
	UnitsFailed   int `json:"units_failed"`

	EntitiesExtracted      int `json:"entities_extracted"`
	RelationshipsExtracted int `json:"relationships_extracted"`

	NodesUpserted int `json:"nodes_upserted"`
	EdgesUpserted int `json:"edges_upserted"`
}

func (r *IngestReport) add(other *IngestReport) {
	r.DocsTotal += other.DocsTotal
	r.DocsLoaded += other.DocsLoaded
	r.DocsFailed += other.DocsFailed
	r.UnitsTotal += other.UnitsTotal
	r.UnitsIngested += other.UnitsIngested
	r.UnitsFailed += other.UnitsFailed
	r.EntitiesExtracted += other.EntitiesExtracted
	r.RelationshipsExtracted += other.RelationshipsExtracted
	r.NodesUpserted += other.NodesUpserted
	r.EdgesUpserted += other.EdgesUpserted
}

// ChunkDocuments loads each document and splits it into units. A document
// that cannot be loaded is skipped with a warning and counted; the
// remaining corpus is still returned.
func (c *GraphClient) ChunkDocuments(
	ctx context.Context,
	docs []loader.Document,
) ([]common.Unit, *IngestReport, error) {
	report := &IngestReport{DocsTotal: len(docs)}

	countTokens, err := c.tokenCounter()
	if err != nil {
		return nil, report, err
	}

	var units []common.Unit
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		text, err := doc.Text(ctx)
		if err != nil {
			logger.Warn("[Graph] Skipping unreadable document", "doc", doc.ID, "error", err)
			report.DocsFailed++
			continue
		}

		docUnits, err := transformIntoUnits(string(text), doc.ID, countTokens, c.maxUnitTokens)
		if err != nil {
			return nil, report, fmt.Errorf("failed to chunk document %s: %w", doc.ID, err)
		}

		report.DocsLoaded++
		units = append(units, docUnits...)
	}

	report.UnitsTotal = len(units)
	return units, report, nil
}

// IngestUnits extracts instances from each unit and upserts them into the
// graph store with bounded parallelism. Extraction failures are retried
// and then counted per unit; a store failure aborts the whole pass.
func (c *GraphClient) IngestUnits(
	ctx context.Context,
	units []common.Unit,
	onto *ontology.Ontology,
	aiClient ai.GraphAIClient,
	storage store.GraphStorage,
) (*IngestReport, error) {
	report := &IngestReport{UnitsTotal: len(units)}

	if recorder, ok := storage.(store.UnitRecorder); ok && len(units) > 0 {
		if err := recorder.RecordUnits(ctx, units); err != nil {
			if errors.Is(err, store.ErrUnavailable) || ctx.Err() != nil {
				return report, err
			}
			logger.Warn("[Graph] Failed to record units, provenance incomplete", "error", err)
		}
	}

	var mu sync.Mutex
	seenNodes := make(map[string]struct{})
	seenEdges := make(map[string]struct{})

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelUnits)
	for _, unit := range units {
		u := unit
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
			}

			entities, relations, err := util.Retry2WithContext(gCtx, c.maxRetries, func(ctx context.Context) ([]common.Entity, []common.Relationship, error) {
				return extractFromUnit(ctx, u, onto, aiClient)
			})
			if err != nil {
				if gCtx.Err() != nil {
					return nil
				}
				logger.Warn("[Graph] Unit failed extraction, skipping", "unit", u.ID, "error", err)
				mu.Lock()
				report.UnitsFailed++
				mu.Unlock()
				return nil
			}

			if err := c.upsertInstances(gCtx, entities, relations, onto, storage, report, &mu, seenNodes, seenEdges); err != nil {
				return c.unitWriteError(gCtx, report, &mu, u, err)
			}

			mu.Lock()
			report.UnitsIngested++
			report.EntitiesExtracted += len(entities)
			report.RelationshipsExtracted += len(relations)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

// unitWriteError classifies a store write failure: an unreachable store
// aborts the pass, anything else loses only the unit.
func (c *GraphClient) unitWriteError(
	ctx context.Context,
	report *IngestReport,
	mu *sync.Mutex,
	u common.Unit,
	err error,
) error {
	if errors.Is(err, store.ErrUnavailable) || ctx.Err() != nil {
		return err
	}
	logger.Warn("[Graph] Unit failed persistence, skipping", "unit", u.ID, "error", err)
	mu.Lock()
	report.UnitsFailed++
	mu.Unlock()
	return nil
}

func (c *GraphClient) upsertInstances(
	ctx context.Context,
	entities []common.Entity,
	relations []common.Relationship,
	onto *ontology.Ontology,
	storage store.GraphStorage,
	report *IngestReport,
	mu *sync.Mutex,
	seenNodes map[string]struct{},
	seenEdges map[string]struct{},
) error {
	upsertNode := func(e common.Entity) (store.NodeRef, error) {
		entityType, ok := onto.EntityType(e.Type)
		if !ok {
			return store.NodeRef{}, fmt.Errorf("entity type %q not declared", e.Type)
		}
		ref := store.NodeRef{Label: e.Type, Key: e.Key(entityType.UniqueAttributes())}
		if err := storage.UpsertNode(ctx, ref, e.Attributes); err != nil {
			return store.NodeRef{}, err
		}
		mu.Lock()
		nodeID := ref.Label + "\x1e" + ref.Key
		if _, dup := seenNodes[nodeID]; !dup {
			seenNodes[nodeID] = struct{}{}
			report.NodesUpserted++
		}
		mu.Unlock()
		return ref, nil
	}

	for _, e := range entities {
		if _, err := upsertNode(e); err != nil {
			return err
		}
	}

	for _, r := range relations {
		src, err := upsertNode(r.Source)
		if err != nil {
			return err
		}
		tgt, err := upsertNode(r.Target)
		if err != nil {
			return err
		}
		if err := storage.UpsertEdge(ctx, r.Type, src, tgt, r.Attributes); err != nil {
			return err
		}
		mu.Lock()
		edgeID := r.Type + "\x1e" + src.Label + "\x1e" + src.Key + "\x1e" + tgt.Label + "\x1e" + tgt.Key
		if _, dup := seenEdges[edgeID]; !dup {
			seenEdges[edgeID] = struct{}{}
			report.EdgesUpserted++
		}
		mu.Unlock()
	}

	return nil
}
