package ontology

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/common"
)

// scriptedAIClient replays canned structured responses in order.
type scriptedAIClient struct {
	responses []string
	calls     int
	err       error
}

func (c *scriptedAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not implemented")
}

func (c *scriptedAIClient) GenerateCompletionWithFormat(ctx context.Context, name string, description string, prompt string, out any, opts ...ai.GenerateOption) error {
	if c.err != nil {
		return c.err
	}
	if c.calls >= len(c.responses) {
		return errors.New("no scripted response left")
	}
	payload := c.responses[c.calls]
	c.calls++
	return json.Unmarshal([]byte(payload), out)
}

func (c *scriptedAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (c *scriptedAIClient) ResetMetrics() {}

func (c *scriptedAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func testDiscoverer() *Discoverer {
	d := NewDiscoverer(NewDiscovererParams{MaxSampleTokens: 1000, MaxRetries: 1})
	d.countTokens = func(text string) int { return len(text) }
	return d
}

func testUnits() []common.Unit {
	return []common.Unit{
		{ID: "u1", DocID: "d1", Index: 0, Text: "Alice wrote the paper Graph Stores in Practice."},
		{ID: "u2", DocID: "d1", Index: 1, Text: "The paper was published in 2021."},
	}
}

const validProposal = `{
	"entities": [
		{"label": "PERSON", "attributes": [{"name": "name", "type": "string", "unique": true, "required": true}]},
		{"label": "PAPER", "attributes": [{"name": "title", "type": "string", "unique": true, "required": true}]}
	],
	"relations": [
		{"label": "AUTHORED_BY", "source": "PAPER", "target": "PERSON"}
	]
}`

func TestDiscoverValidProposal(t *testing.T) {
	client := &scriptedAIClient{responses: []string{validProposal}}

	onto, err := testDiscoverer().Discover(context.Background(), testUnits(), client)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected a single model call, got %d", client.calls)
	}
	if _, ok := onto.EntityType("PERSON"); !ok {
		t.Fatal("discovered ontology missing PERSON")
	}
	if _, ok := onto.RelationType("AUTHORED_BY"); !ok {
		t.Fatal("discovered ontology missing AUTHORED_BY")
	}
	if err := onto.Validate(); err != nil {
		t.Fatalf("discovered ontology must validate: %v", err)
	}
}

func TestDiscoverCorrectiveRetryOnInvalidProposal(t *testing.T) {
	// First proposal references an entity type it does not declare.
	invalid := `{
		"entities": [
			{"label": "PERSON", "attributes": [{"name": "name", "type": "string", "unique": true, "required": true}]}
		],
		"relations": [
			{"label": "AUTHORED_BY", "source": "PAPER", "target": "PERSON"}
		]
	}`
	client := &scriptedAIClient{responses: []string{invalid, validProposal}}

	onto, err := testDiscoverer().Discover(context.Background(), testUnits(), client)
	if err != nil {
		t.Fatalf("Discover() should recover via one corrective retry: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected exactly two model calls, got %d", client.calls)
	}
	if _, ok := onto.EntityType("PAPER"); !ok {
		t.Fatal("corrected ontology missing PAPER")
	}
}

func TestDiscoverFailsAfterSecondInvalidProposal(t *testing.T) {
	empty := `{"entities": [], "relations": []}`
	client := &scriptedAIClient{responses: []string{empty, empty}}

	_, err := testDiscoverer().Discover(context.Background(), testUnits(), client)
	if !errors.Is(err, ErrDiscovery) {
		t.Fatalf("expected ErrDiscovery, got %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected exactly two model calls, got %d", client.calls)
	}
}

func TestDiscoverWrapsProviderFailure(t *testing.T) {
	client := &scriptedAIClient{err: errors.New("provider unreachable")}

	_, err := testDiscoverer().Discover(context.Background(), testUnits(), client)
	if !errors.Is(err, ErrDiscovery) {
		t.Fatalf("expected ErrDiscovery, got %v", err)
	}
}

func TestDiscoverEmptyCorpus(t *testing.T) {
	client := &scriptedAIClient{responses: []string{validProposal}}

	_, err := testDiscoverer().Discover(context.Background(), nil, client)
	if !errors.Is(err, ErrDiscovery) {
		t.Fatalf("expected ErrDiscovery for empty corpus, got %v", err)
	}
	if client.calls != 0 {
		t.Fatal("no model call expected for an empty corpus")
	}
}

func TestDiscoverNormalizesProposal(t *testing.T) {
	// Proposal omits attribute types and uniqueness; normalization fills them.
	sparse := `{
		"entities": [
			{"label": "TOPIC", "attributes": [{"name": "name"}]}
		],
		"relations": []
	}`
	client := &scriptedAIClient{responses: []string{sparse}}

	onto, err := testDiscoverer().Discover(context.Background(), testUnits(), client)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	topic, ok := onto.EntityType("TOPIC")
	if !ok {
		t.Fatal("discovered ontology missing TOPIC")
	}
	if topic.Attributes[0].Type != AttrString || !topic.Attributes[0].Unique {
		t.Fatalf("expected normalized identity attribute, got %+v", topic.Attributes[0])
	}
}

func TestSampleCorpusRespectsBudget(t *testing.T) {
	d := NewDiscoverer(NewDiscovererParams{MaxSampleTokens: 10, MaxRetries: 1})
	d.countTokens = func(text string) int { return len(text) }

	sample, err := d.sampleCorpus([]common.Unit{
		{Text: "12345678"},
		{Text: "12345678"},
	})
	if err != nil {
		t.Fatalf("sampleCorpus() error: %v", err)
	}
	if sample != "12345678" {
		t.Fatalf("expected only the first unit within budget, got %q", sample)
	}
}
