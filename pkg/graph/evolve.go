package graph

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/common"
	"github.com/ontoforge/ontoforge/pkg/loader"
	"github.com/ontoforge/ontoforge/pkg/logger"
	"github.com/ontoforge/ontoforge/pkg/ontology"
	"github.com/ontoforge/ontoforge/pkg/store"
)

// BuildState is one step of the build pipeline.
type BuildState string

const (
	StateLoadingInitial    BuildState = "LOADING_INITIAL"
	StateDiscovering       BuildState = "DISCOVERING"
	StateMerging           BuildState = "MERGING"
	StateSavingOntology    BuildState = "SAVING_ONTOLOGY"
	StateIngestingInitial  BuildState = "INGESTING_INITIAL"
	StateLoadingAdditional BuildState = "LOADING_ADDITIONAL"
	StateIngestingFull     BuildState = "INGESTING_FULL"
	StateDone              BuildState = "DONE"
	StateFailed            BuildState = "FAILED"
)

// BuildReport summarizes one build run: the state it ended in, the merge
// warnings and the ingestion counts of each pass.
type BuildReport struct {
	RunID    string        `json:"run_id"`
	State    BuildState    `json:"state"`
	Warnings []string      `json:"warnings,omitempty"`
	Initial  *IngestReport `json:"initial,omitempty"`
	Full     *IngestReport `json:"full,omitempty"`
}

// Builder runs the full pipeline: load the initial corpus, discover a
// schema, merge it with the persisted ontology, save the result, ingest
// the initial corpus and finally extend ingestion over the additional
// corpus. It is the only component that saves the ontology.
type Builder struct {
	client     *GraphClient
	discoverer *ontology.Discoverer
	ontoStore  *ontology.FileStore
	fileLoader loader.FileLoader
	policy     ontology.ConflictPolicy
}

// NewBuilderParams configures a Builder. FileLoader retrieves document
// text, usually the PDF extraction loader.
type NewBuilderParams struct {
	Client     *GraphClient
	Discoverer *ontology.Discoverer
	OntoStore  *ontology.FileStore
	FileLoader loader.FileLoader
	Policy     ontology.ConflictPolicy
}

// NewBuilder creates a Builder with the provided parameters.
func NewBuilder(params NewBuilderParams) *Builder {
	return &Builder{
		client:     params.Client,
		discoverer: params.Discoverer,
		ontoStore:  params.OntoStore,
		fileLoader: params.FileLoader,
		policy:     params.Policy,
	}
}

// Build runs the pipeline over an initial corpus directory and an
// optional additional corpus directory. It returns the report alongside
// any error; on failure the report's state is FAILED and the report
// carries whatever was counted up to that point.
func (b *Builder) Build(
	ctx context.Context,
	initialDir string,
	additionalDir string,
	aiClient ai.GraphAIClient,
	storage store.GraphStorage,
) (*BuildReport, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run ID: %w", err)
	}
	report := &BuildReport{RunID: runID}

	fail := func(err error) (*BuildReport, error) {
		report.State = StateFailed
		logger.Error("[Build] Failed", "run", runID, "error", err)
		return report, err
	}

	b.setState(report, StateLoadingInitial)
	initialDocs, err := loader.DiscoverPDFs(initialDir, b.fileLoader)
	if err != nil {
		return fail(err)
	}
	initialUnits, chunkReport, err := b.client.ChunkDocuments(ctx, initialDocs)
	if err != nil {
		return fail(err)
	}
	logger.Info("[Build] Initial corpus loaded",
		"docs", chunkReport.DocsLoaded, "skipped", chunkReport.DocsFailed, "units", len(initialUnits))

	b.setState(report, StateDiscovering)
	discovered, err := b.discoverer.Discover(ctx, initialUnits, aiClient)
	if err != nil {
		return fail(err)
	}

	b.setState(report, StateMerging)
	existing, found, err := b.ontoStore.Load()
	if err != nil {
		return fail(err)
	}
	var existingPtr *ontology.Ontology
	if found {
		existingPtr = &existing
	}
	merged, warnings, err := ontology.Merge(existingPtr, discovered, b.policy)
	if err != nil {
		return fail(err)
	}
	report.Warnings = warnings
	for _, w := range warnings {
		logger.Warn("[Build] Merge warning", "run", runID, "warning", w)
	}

	b.setState(report, StateSavingOntology)
	if err := b.ontoStore.Save(merged); err != nil {
		return fail(err)
	}
	logger.Info("[Build] Ontology saved",
		"path", b.ontoStore.Path(), "entities", len(merged.Entities), "relations", len(merged.Relations))

	b.setState(report, StateIngestingInitial)
	initialIngest, err := b.client.IngestUnits(ctx, initialUnits, &merged, aiClient, storage)
	initialIngest.add(chunkReport)
	initialIngest.UnitsTotal = len(initialUnits)
	report.Initial = initialIngest
	if err != nil {
		return fail(err)
	}

	b.setState(report, StateLoadingAdditional)
	var additionalDocs []loader.Document
	if additionalDir != "" {
		additionalDocs, err = loader.DiscoverPDFs(additionalDir, b.fileLoader)
		if err != nil {
			return fail(err)
		}
	}

	if len(additionalDocs) > 0 {
		b.setState(report, StateIngestingFull)
		additionalUnits, fullChunkReport, err := b.client.ChunkDocuments(ctx, additionalDocs)
		if err != nil {
			return fail(err)
		}
		// The full pass covers the whole corpus; re-ingesting the initial
		// units is a no-op thanks to idempotent upserts.
		fullUnits := append(append([]common.Unit{}, initialUnits...), additionalUnits...)
		fullIngest, err := b.client.IngestUnits(ctx, fullUnits, &merged, aiClient, storage)
		fullIngest.add(fullChunkReport)
		fullIngest.UnitsTotal = len(fullUnits)
		report.Full = fullIngest
		if err != nil {
			return fail(err)
		}
	}

	b.setState(report, StateDone)
	logger.Info("[Build] Done", "run", runID)
	return report, nil
}

func (b *Builder) setState(report *BuildReport, state BuildState) {
	report.State = state
	logger.Info("[Build] State", "run", report.RunID, "state", state)
}
