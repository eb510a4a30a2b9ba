package graph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ontoforge/ontoforge/pkg/ontology"
)

type pathTextLoader struct {
	texts map[string]string
}

func (l *pathTextLoader) GetFileText(ctx context.Context, path string) ([]byte, error) {
	text, ok := l.texts[filepath.Base(path)]
	if !ok {
		return nil, errors.New("corrupt file")
	}
	return []byte(text), nil
}

const aliceProposal = `{
	"entities": [
		{"label": "PERSON", "attributes": [{"name": "name", "type": "string", "unique": true, "required": true}]},
		{"label": "PAPER", "attributes": [{"name": "title", "type": "string", "unique": true, "required": true}]}
	],
	"relations": [
		{"label": "AUTHORED_BY", "source": "PAPER", "target": "PERSON"}
	]
}`

func writeCorpus(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF"), 0o644); err != nil {
			t.Fatalf("WriteFile() error: %v", err)
		}
	}
}

func testBuilder(t *testing.T, fl *pathTextLoader) (*Builder, *ontology.FileStore) {
	t.Helper()
	ontoStore := ontology.NewFileStore(filepath.Join(t.TempDir(), "ontology.json"))
	builder := NewBuilder(NewBuilderParams{
		Client: testGraphClient(),
		Discoverer: ontology.NewDiscoverer(ontology.NewDiscovererParams{
			MaxSampleTokens: 1000,
			MaxRetries:      1,
			CountTokens:     byWords,
		}),
		OntoStore:  ontoStore,
		FileLoader: fl,
		Policy:     ontology.PreferExisting,
	})
	return builder, ontoStore
}

func TestBuildFullPipeline(t *testing.T) {
	initialDir := t.TempDir()
	additionalDir := t.TempDir()
	writeCorpus(t, initialDir, "one.pdf", "broken.pdf")
	writeCorpus(t, additionalDir, "two.pdf")

	fl := &pathTextLoader{texts: map[string]string{
		"one.pdf": "Alice wrote Graph Stores in Practice.",
		"two.pdf": "Graph Stores in Practice was written by Alice.",
	}}
	builder, ontoStore := testBuilder(t, fl)
	storage := newMemStorage()
	client := &fakeAIClient{discoverPayload: aliceProposal, extract: extractAlice}

	report, err := builder.Build(context.Background(), initialDir, additionalDir, client, storage)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if report.State != StateDone {
		t.Fatalf("final state = %s, want %s", report.State, StateDone)
	}

	// One unreadable document is skipped, not fatal.
	if report.Initial == nil || report.Initial.DocsFailed != 1 || report.Initial.DocsLoaded != 1 {
		t.Fatalf("unexpected initial report: %+v", report.Initial)
	}
	if report.Full == nil || report.Full.DocsLoaded != 1 {
		t.Fatalf("unexpected full report: %+v", report.Full)
	}

	onto, found, err := ontoStore.Load()
	if err != nil || !found {
		t.Fatalf("ontology not persisted: found=%v err=%v", found, err)
	}
	if _, ok := onto.RelationType("AUTHORED_BY"); !ok {
		t.Fatalf("persisted ontology missing AUTHORED_BY: %+v", onto)
	}

	if len(storage.nodes) != 2 || len(storage.edges) != 1 {
		t.Fatalf("unexpected graph: %d nodes, %d edges", len(storage.nodes), len(storage.edges))
	}
}

func TestBuildWithoutAdditionalCorpus(t *testing.T) {
	initialDir := t.TempDir()
	writeCorpus(t, initialDir, "one.pdf")

	fl := &pathTextLoader{texts: map[string]string{
		"one.pdf": "Alice wrote Graph Stores in Practice.",
	}}
	builder, _ := testBuilder(t, fl)
	storage := newMemStorage()
	client := &fakeAIClient{discoverPayload: aliceProposal, extract: extractAlice}

	report, err := builder.Build(context.Background(), initialDir, "", client, storage)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if report.State != StateDone {
		t.Fatalf("final state = %s, want %s", report.State, StateDone)
	}
	if report.Full != nil {
		t.Fatalf("no full pass expected without an additional corpus, got %+v", report.Full)
	}
}

func TestBuildAdditionalCorpusExtendsGraph(t *testing.T) {
	initialDir := t.TempDir()
	additionalDir := t.TempDir()
	writeCorpus(t, initialDir, "one.pdf")
	writeCorpus(t, additionalDir, "two.pdf")

	fl := &pathTextLoader{texts: map[string]string{
		"one.pdf": "Alice wrote Graph Stores in Practice.",
		"two.pdf": "Bob reviewed things.",
	}}
	builder, _ := testBuilder(t, fl)
	storage := newMemStorage()
	client := &fakeAIClient{
		discoverPayload: aliceProposal,
		extract: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Bob") {
				return `{
					"entities": [{"type": "PERSON", "attributes": [{"name": "name", "value": "Bob"}]}],
					"relationships": []
				}`, nil
			}
			return aliceExtraction, nil
		},
	}

	// First run over the initial corpus only.
	if _, err := builder.Build(context.Background(), initialDir, "", client, storage); err != nil {
		t.Fatalf("first Build() error: %v", err)
	}
	nodesAfterInitial := make(map[string]struct{}, len(storage.nodes))
	for id := range storage.nodes {
		nodesAfterInitial[id] = struct{}{}
	}

	// Second run extends over the additional corpus.
	if _, err := builder.Build(context.Background(), initialDir, additionalDir, client, storage); err != nil {
		t.Fatalf("second Build() error: %v", err)
	}

	for id := range nodesAfterInitial {
		if _, ok := storage.nodes[id]; !ok {
			t.Fatalf("node %s lost after extending the corpus", id)
		}
	}
	if _, ok := storage.nodes["PERSON|Bob"]; !ok {
		t.Fatalf("additional corpus node missing: %v", storage.nodes)
	}
}

func TestBuildFailsWhenDiscoveryFails(t *testing.T) {
	initialDir := t.TempDir()
	writeCorpus(t, initialDir, "one.pdf")

	fl := &pathTextLoader{texts: map[string]string{
		"one.pdf": "Alice wrote Graph Stores in Practice.",
	}}
	builder, ontoStore := testBuilder(t, fl)
	storage := newMemStorage()
	// Discovery keeps proposing an empty schema; both attempts fail.
	client := &fakeAIClient{discoverPayload: `{"entities": [], "relations": []}`, extract: extractAlice}

	report, err := builder.Build(context.Background(), initialDir, "", client, storage)
	if !errors.Is(err, ontology.ErrDiscovery) {
		t.Fatalf("expected ErrDiscovery, got %v", err)
	}
	if report.State != StateFailed {
		t.Fatalf("final state = %s, want %s", report.State, StateFailed)
	}
	if _, found, _ := ontoStore.Load(); found {
		t.Fatal("no ontology must be saved when discovery fails")
	}
	if len(storage.nodes) != 0 {
		t.Fatal("no instances must be ingested when discovery fails")
	}
}

func TestBuildMergesWithPersistedOntology(t *testing.T) {
	initialDir := t.TempDir()
	writeCorpus(t, initialDir, "one.pdf")

	fl := &pathTextLoader{texts: map[string]string{
		"one.pdf": "Alice wrote Graph Stores in Practice.",
	}}
	builder, ontoStore := testBuilder(t, fl)

	existing := ontology.Ontology{
		Entities: []ontology.EntityType{
			{
				Label: "VENUE",
				Attributes: []ontology.Attribute{
					{Name: "name", Type: ontology.AttrString, Unique: true, Required: true},
				},
			},
		},
	}
	if err := ontoStore.Save(existing); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	storage := newMemStorage()
	client := &fakeAIClient{discoverPayload: aliceProposal, extract: extractAlice}
	if _, err := builder.Build(context.Background(), initialDir, "", client, storage); err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	onto, _, err := ontoStore.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	// The persisted type survives alongside the newly discovered ones.
	if _, ok := onto.EntityType("VENUE"); !ok {
		t.Fatalf("existing VENUE lost in merge: %+v", onto)
	}
	if _, ok := onto.EntityType("PERSON"); !ok {
		t.Fatalf("discovered PERSON missing after merge: %+v", onto)
	}
}
