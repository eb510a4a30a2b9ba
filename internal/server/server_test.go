package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/ontology"
	"github.com/ontoforge/ontoforge/pkg/store"
)

type fakeStorage struct {
	nodeCounts map[string]int64
	context    string
	pingErr    error
}

func (s *fakeStorage) UpsertNode(ctx context.Context, ref store.NodeRef, attrs map[string]string) error {
	return errors.New("not implemented")
}

func (s *fakeStorage) UpsertEdge(ctx context.Context, label string, source store.NodeRef, target store.NodeRef, attrs map[string]string) error {
	return errors.New("not implemented")
}

func (s *fakeStorage) CountNodes(ctx context.Context, label string) (int64, error) {
	return s.nodeCounts[label], nil
}

func (s *fakeStorage) CountEdges(ctx context.Context, label string) (int64, error) {
	return 0, nil
}

func (s *fakeStorage) RetrieveContext(ctx context.Context, question string, limit int) (string, error) {
	return s.context, nil
}

func (s *fakeStorage) Ping(ctx context.Context) error { return s.pingErr }

func (s *fakeStorage) Close(ctx context.Context) error { return nil }

type fakeAIClient struct {
	answer string
}

func (c *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return c.answer, nil
}

func (c *fakeAIClient) GenerateCompletionWithFormat(ctx context.Context, name string, description string, prompt string, out any, opts ...ai.GenerateOption) error {
	return errors.New("not implemented")
}

func (c *fakeAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeAIClient) ResetMetrics() {}

func (c *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func testServer(t *testing.T, saveOntology bool) (*Server, *echo.Echo) {
	t.Helper()

	ontoStore := ontology.NewFileStore(filepath.Join(t.TempDir(), "ontology.json"))
	if saveOntology {
		onto := ontology.Ontology{
			Entities: []ontology.EntityType{
				{
					Label: "PERSON",
					Attributes: []ontology.Attribute{
						{Name: "name", Type: ontology.AttrString, Unique: true, Required: true},
					},
				},
			},
		}
		if err := ontoStore.Save(onto); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}

	srv := NewServer(NewServerParams{
		OntoStore: ontoStore,
		Storage:   &fakeStorage{nodeCounts: map[string]int64{"PERSON": 2}, context: "Entities:\n- PERSON: name: Alice\n"},
		AIClient:  &fakeAIClient{answer: "Alice."},
	})

	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}
	srv.registerRoutes(e)
	return srv, e
}

func doRequest(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	_, e := testServer(t, true)

	rec := doRequest(e, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", rec.Code)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	_, e := testServer(t, true)

	rec := doRequest(e, "/schema?counts=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /schema = %d: %s", rec.Code, rec.Body)
	}

	var body struct {
		Entities []struct {
			Label string `json:"label"`
			Count *int64 `json:"count"`
		} `json:"entities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(body.Entities) != 1 || body.Entities[0].Label != "PERSON" {
		t.Fatalf("unexpected schema body: %s", rec.Body)
	}
	if body.Entities[0].Count == nil || *body.Entities[0].Count != 2 {
		t.Fatalf("expected live count 2, got %v", body.Entities[0].Count)
	}
}

func TestSchemaEndpointWithoutOntology(t *testing.T) {
	_, e := testServer(t, false)

	rec := doRequest(e, "/schema")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /schema without ontology = %d, want 404", rec.Code)
	}
}

func TestAskEndpoint(t *testing.T) {
	_, e := testServer(t, true)

	rec := doRequest(e, "/ask?q=Who+is+in+the+graph")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /ask = %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "Alice.") {
		t.Fatalf("unexpected answer body: %s", rec.Body)
	}
}

func TestAskEndpointRequiresQuestion(t *testing.T) {
	_, e := testServer(t, true)

	rec := doRequest(e, "/ask")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("GET /ask without q = %d, want 400", rec.Code)
	}
}
