package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/logger"
	"github.com/ontoforge/ontoforge/pkg/ontology"
	"github.com/ontoforge/ontoforge/pkg/store"
)

// ErrAnswer marks a question that could not be answered: query generation
// failed, the generated query was rejected, or its execution failed.
var ErrAnswer = errors.New("failed to answer question")

// EntitySchema is one entity type of the schema listing, with an optional
// live instance count.
type EntitySchema struct {
	Label      string               `json:"label"`
	Attributes []ontology.Attribute `json:"attributes"`
	Count      *int64               `json:"count,omitempty"`
}

// RelationSchema is one relation type of the schema listing, with an
// optional live instance count.
type RelationSchema struct {
	Label  string `json:"label"`
	Source string `json:"source"`
	Target string `json:"target"`
	Count  *int64 `json:"count,omitempty"`
}

// SchemaReport is the schema listing served by the schema and relations
// commands.
type SchemaReport struct {
	Entities  []EntitySchema   `json:"entities"`
	Relations []RelationSchema `json:"relations"`
}

// Schema renders the ontology as a schema report. With withCounts set,
// each type carries its live instance count from the graph store; a
// count that cannot be read leaves the field empty instead of failing
// the whole listing.
func Schema(
	ctx context.Context,
	onto *ontology.Ontology,
	storage store.GraphStorage,
	withCounts bool,
) (*SchemaReport, error) {
	report := &SchemaReport{
		Entities:  make([]EntitySchema, 0, len(onto.Entities)),
		Relations: make([]RelationSchema, 0, len(onto.Relations)),
	}

	for _, e := range onto.Entities {
		entry := EntitySchema{Label: e.Label, Attributes: e.Attributes}
		if withCounts {
			count, err := storage.CountNodes(ctx, e.Label)
			if err != nil {
				logger.Warn("[Query] Failed to count nodes", "label", e.Label, "error", err)
			} else {
				entry.Count = &count
			}
		}
		report.Entities = append(report.Entities, entry)
	}

	for _, r := range onto.Relations {
		entry := RelationSchema{Label: r.Label, Source: r.Source, Target: r.Target}
		if withCounts {
			count, err := storage.CountEdges(ctx, r.Label)
			if err != nil {
				logger.Warn("[Query] Failed to count edges", "label", r.Label, "error", err)
			} else {
				entry.Count = &count
			}
		}
		report.Relations = append(report.Relations, entry)
	}

	return report, nil
}

// Ask answers a natural-language question over the graph. Stores with a
// query language get a generated read-only query; other stores serve the
// answer from retrieved context. Either way the final answer is
// synthesized by the model from what the store returned.
func Ask(
	ctx context.Context,
	question string,
	onto *ontology.Ontology,
	storage store.GraphStorage,
	aiClient ai.GraphAIClient,
) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: empty question", ErrAnswer)
	}
	if onto.IsEmpty() {
		return "", fmt.Errorf("%w: no ontology available, run a build first", ErrAnswer)
	}

	if runner, ok := storage.(store.CypherRunner); ok {
		return askWithCypher(ctx, question, onto, runner, aiClient)
	}
	if retriever, ok := storage.(store.ContextRetriever); ok {
		return askWithContext(ctx, question, retriever, aiClient)
	}
	return "", fmt.Errorf("%w: store supports neither queries nor context retrieval", ErrAnswer)
}

func askWithCypher(
	ctx context.Context,
	question string,
	onto *ontology.Ontology,
	runner store.CypherRunner,
	aiClient ai.GraphAIClient,
) (string, error) {
	labels := make([]string, 0, len(onto.Entities))
	for _, e := range onto.Entities {
		attrs := make([]string, 0, len(e.Attributes))
		for _, a := range e.Attributes {
			attrs = append(attrs, a.Name)
		}
		labels = append(labels, fmt.Sprintf("%s(%s)", e.Label, strings.Join(attrs, ", ")))
	}
	rels := make([]string, 0, len(onto.Relations))
	for _, r := range onto.Relations {
		rels = append(rels, fmt.Sprintf("(:%s)-[:%s]->(:%s)", r.Source, r.Label, r.Target))
	}

	systemPrompt := fmt.Sprintf(ai.CypherPrompt, strings.Join(labels, ", "), strings.Join(rels, ", "))
	raw, err := aiClient.GenerateCompletion(ctx, question, ai.WithSystemPrompts(systemPrompt))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAnswer, err)
	}

	stmt := strings.TrimSpace(ai.StripCodeFence(raw))
	if err := validateReadOnly(stmt); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAnswer, err)
	}
	logger.Debug("[Query] Generated query", "stmt", stmt)

	rows, err := runner.RunCypher(ctx, stmt, nil)
	if err != nil {
		return "", fmt.Errorf("%w: query execution failed: %w", ErrAnswer, err)
	}

	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAnswer, err)
	}

	return synthesize(ctx, question, stmt, string(rowsJSON), aiClient)
}

func askWithContext(
	ctx context.Context,
	question string,
	retriever store.ContextRetriever,
	aiClient ai.GraphAIClient,
) (string, error) {
	retrieved, err := retriever.RetrieveContext(ctx, question, 12)
	if err != nil {
		return "", fmt.Errorf("%w: context retrieval failed: %w", ErrAnswer, err)
	}
	return synthesize(ctx, question, "similarity retrieval", retrieved, aiClient)
}

func synthesize(
	ctx context.Context,
	question string,
	source string,
	rows string,
	aiClient ai.GraphAIClient,
) (string, error) {
	systemPrompt := fmt.Sprintf(ai.AnswerPrompt, source, rows)
	answer, err := aiClient.GenerateCompletion(ctx, question, ai.WithSystemPrompts(systemPrompt))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAnswer, err)
	}
	return strings.TrimSpace(answer), nil
}

var writeClauses = map[string]struct{}{
	"create": {}, "merge": {}, "set": {}, "delete": {}, "detach": {},
	"remove": {}, "drop": {}, "call": {}, "load": {}, "foreach": {},
}

// validateReadOnly rejects generated statements containing write clauses.
// Keywords are matched as whole words so property names like "dataset"
// pass.
func validateReadOnly(stmt string) error {
	if stmt == "" {
		return fmt.Errorf("model produced an empty query")
	}
	lower := strings.ToLower(stmt)
	if !strings.HasPrefix(lower, "match") && !strings.HasPrefix(lower, "optional match") {
		return fmt.Errorf("generated query must start with MATCH")
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	})
	for _, word := range words {
		if _, bad := writeClauses[word]; bad {
			return fmt.Errorf("generated query contains write clause %q", word)
		}
	}
	return nil
}
