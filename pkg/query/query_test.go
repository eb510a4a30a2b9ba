package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/ontology"
	"github.com/ontoforge/ontoforge/pkg/store"
)

// promptedAIClient answers by matching on the system prompt: one response
// for query generation, one for answer synthesis.
type promptedAIClient struct {
	cypherResponse string
	answerResponse string
	err            error
}

func (c *promptedAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	options := ai.GenerateOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if len(options.SystemPrompts) > 0 && strings.Contains(options.SystemPrompts[0], "graph-database developer") {
		return c.cypherResponse, nil
	}
	return c.answerResponse, nil
}

func (c *promptedAIClient) GenerateCompletionWithFormat(ctx context.Context, name string, description string, prompt string, out any, opts ...ai.GenerateOption) error {
	return errors.New("not implemented")
}

func (c *promptedAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (c *promptedAIClient) ResetMetrics() {}

func (c *promptedAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

// countingStore serves only counts.
type countingStore struct {
	nodeCounts map[string]int64
	edgeCounts map[string]int64
	countErr   error
}

func (s *countingStore) UpsertNode(ctx context.Context, ref store.NodeRef, attrs map[string]string) error {
	return errors.New("not implemented")
}

func (s *countingStore) UpsertEdge(ctx context.Context, label string, source store.NodeRef, target store.NodeRef, attrs map[string]string) error {
	return errors.New("not implemented")
}

func (s *countingStore) CountNodes(ctx context.Context, label string) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.nodeCounts[label], nil
}

func (s *countingStore) CountEdges(ctx context.Context, label string) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.edgeCounts[label], nil
}

func (s *countingStore) Ping(ctx context.Context) error { return nil }

func (s *countingStore) Close(ctx context.Context) error { return nil }

// cypherStore records the statement it was asked to run.
type cypherStore struct {
	countingStore
	lastStmt string
	rows     []map[string]any
	runErr   error
}

func (s *cypherStore) RunCypher(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error) {
	s.lastStmt = stmt
	if s.runErr != nil {
		return nil, s.runErr
	}
	return s.rows, nil
}

// retrievalStore serves similarity context instead of queries.
type retrievalStore struct {
	countingStore
	lastQuestion string
	context      string
}

func (s *retrievalStore) RetrieveContext(ctx context.Context, question string, limit int) (string, error) {
	s.lastQuestion = question
	return s.context, nil
}

func testOntology() ontology.Ontology {
	return ontology.Ontology{
		Entities: []ontology.EntityType{
			{
				Label: "PERSON",
				Attributes: []ontology.Attribute{
					{Name: "name", Type: ontology.AttrString, Unique: true, Required: true},
				},
			},
			{
				Label: "PAPER",
				Attributes: []ontology.Attribute{
					{Name: "title", Type: ontology.AttrString, Unique: true, Required: true},
				},
			},
		},
		Relations: []ontology.RelationType{
			{Label: "AUTHORED_BY", Source: "PAPER", Target: "PERSON"},
		},
	}
}

func TestSchemaWithCounts(t *testing.T) {
	onto := testOntology()
	storage := &countingStore{
		nodeCounts: map[string]int64{"PERSON": 3, "PAPER": 5},
		edgeCounts: map[string]int64{"AUTHORED_BY": 7},
	}

	report, err := Schema(context.Background(), &onto, storage, true)
	if err != nil {
		t.Fatalf("Schema() error: %v", err)
	}

	if len(report.Entities) != 2 || len(report.Relations) != 1 {
		t.Fatalf("unexpected report shape: %+v", report)
	}
	if report.Entities[0].Count == nil || *report.Entities[0].Count != 3 {
		t.Fatalf("PERSON count = %v, want 3", report.Entities[0].Count)
	}
	if report.Relations[0].Count == nil || *report.Relations[0].Count != 7 {
		t.Fatalf("AUTHORED_BY count = %v, want 7", report.Relations[0].Count)
	}
}

func TestSchemaWithoutCounts(t *testing.T) {
	onto := testOntology()
	report, err := Schema(context.Background(), &onto, &countingStore{}, false)
	if err != nil {
		t.Fatalf("Schema() error: %v", err)
	}
	for _, e := range report.Entities {
		if e.Count != nil {
			t.Fatalf("entity %s has a count without withCounts", e.Label)
		}
	}
}

func TestSchemaCountErrorIsNotFatal(t *testing.T) {
	onto := testOntology()
	storage := &countingStore{countErr: errors.New("store down")}

	report, err := Schema(context.Background(), &onto, storage, true)
	if err != nil {
		t.Fatalf("Schema() should tolerate count failures: %v", err)
	}
	if report.Entities[0].Count != nil {
		t.Fatal("failed count must leave the field empty")
	}
}

func TestAskWithCypher(t *testing.T) {
	onto := testOntology()
	storage := &cypherStore{rows: []map[string]any{{"name": "Alice"}}}
	client := &promptedAIClient{
		cypherResponse: "```cypher\nMATCH (p:PERSON) RETURN p.name\n```",
		answerResponse: "Alice is the only author.",
	}

	answer, err := Ask(context.Background(), "Who are the authors?", &onto, storage, client)
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if answer != "Alice is the only author." {
		t.Fatalf("Ask() = %q", answer)
	}
	if storage.lastStmt != "MATCH (p:PERSON) RETURN p.name" {
		t.Fatalf("executed statement = %q", storage.lastStmt)
	}
}

func TestAskRejectsWriteQueries(t *testing.T) {
	onto := testOntology()
	storage := &cypherStore{}
	client := &promptedAIClient{
		cypherResponse: "MATCH (p:PERSON) DETACH DELETE p",
		answerResponse: "done",
	}

	_, err := Ask(context.Background(), "Delete everyone", &onto, storage, client)
	if !errors.Is(err, ErrAnswer) {
		t.Fatalf("expected ErrAnswer, got %v", err)
	}
	if storage.lastStmt != "" {
		t.Fatalf("write query must never reach the store, got %q", storage.lastStmt)
	}
}

func TestAskFallsBackToContextRetrieval(t *testing.T) {
	onto := testOntology()
	storage := &retrievalStore{context: "Entities:\n- PERSON: name: Alice\n"}
	client := &promptedAIClient{answerResponse: "Alice."}

	answer, err := Ask(context.Background(), "Who is in the graph?", &onto, storage, client)
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if answer != "Alice." {
		t.Fatalf("Ask() = %q", answer)
	}
	if storage.lastQuestion != "Who is in the graph?" {
		t.Fatalf("retrieval question = %q", storage.lastQuestion)
	}
}

func TestAskWithoutOntology(t *testing.T) {
	onto := ontology.Ontology{}
	_, err := Ask(context.Background(), "Anything?", &onto, &cypherStore{}, &promptedAIClient{})
	if !errors.Is(err, ErrAnswer) {
		t.Fatalf("expected ErrAnswer, got %v", err)
	}
}

func TestAskQueryExecutionFailure(t *testing.T) {
	onto := testOntology()
	storage := &cypherStore{runErr: errors.New("syntax error")}
	client := &promptedAIClient{cypherResponse: "MATCH (n) RETURN n"}

	_, err := Ask(context.Background(), "Who?", &onto, storage, client)
	if !errors.Is(err, ErrAnswer) {
		t.Fatalf("expected ErrAnswer, got %v", err)
	}
}

func TestValidateReadOnly(t *testing.T) {
	tests := []struct {
		name    string
		stmt    string
		wantErr bool
	}{
		{name: "simple match", stmt: "MATCH (n:PERSON) RETURN n.name", wantErr: false},
		{name: "optional match", stmt: "OPTIONAL MATCH (n) RETURN n", wantErr: false},
		{name: "property named dataset", stmt: "MATCH (n) RETURN n.dataset", wantErr: false},
		{name: "empty", stmt: "", wantErr: true},
		{name: "create", stmt: "CREATE (n:PERSON {name: 'Eve'})", wantErr: true},
		{name: "embedded delete", stmt: "MATCH (n) DETACH DELETE n", wantErr: true},
		{name: "merge", stmt: "MATCH (n) MERGE (m:PERSON) RETURN m", wantErr: true},
		{name: "does not start with match", stmt: "RETURN 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateReadOnly(tt.stmt)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateReadOnly(%q) error = %v, wantErr %v", tt.stmt, err, tt.wantErr)
			}
		})
	}
}
