package ontology

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ontoforge/ontoforge/internal/util"
	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/common"
	"github.com/ontoforge/ontoforge/pkg/logger"
)

// ErrDiscovery marks a failed schema discovery: the model could not
// produce a valid ontology even after one corrective retry. It is fatal to
// the running build.
var ErrDiscovery = errors.New("ontology discovery failed")

type discoverAttribute struct {
	Name     string `json:"name" jsonschema_description:"Attribute name, lower_snake_case"`
	Type     string `json:"type" jsonschema_description:"One of: string, number, boolean"`
	Unique   bool   `json:"unique" jsonschema_description:"True if this attribute uniquely identifies an instance"`
	Required bool   `json:"required" jsonschema_description:"True if every instance must have this attribute"`
}

type discoverEntity struct {
	Label      string              `json:"label" jsonschema_description:"Entity type label, UPPER_SNAKE_CASE"`
	Attributes []discoverAttribute `json:"attributes" jsonschema_description:"Attribute declarations, at least the unique identifying attribute"`
}

type discoverRelation struct {
	Label  string `json:"label" jsonschema_description:"Relation type label, UPPER_SNAKE_CASE"`
	Source string `json:"source" jsonschema_description:"Label of the source entity type, must be one of the proposed entity types"`
	Target string `json:"target" jsonschema_description:"Label of the target entity type, must be one of the proposed entity types"`
}

type discoverResponse struct {
	Entities  []discoverEntity   `json:"entities" jsonschema_description:"Proposed entity types"`
	Relations []discoverRelation `json:"relations" jsonschema_description:"Proposed relation types between the entity types"`
}

// Discoverer drives the extraction model to propose an ontology from a
// text corpus. Discovery is not deterministic; repeated runs over the same
// corpus may propose different schemas, which the merge step reconciles.
type Discoverer struct {
	tokenEncoder    string
	maxSampleTokens int
	maxRetries      int

	countTokens func(string) int
}

// NewDiscovererParams configures a Discoverer. MaxSampleTokens bounds the
// corpus sample submitted to the model; units beyond the budget are
// skipped in favor of breadth across documents. CountTokens overrides the
// token encoder when set.
type NewDiscovererParams struct {
	TokenEncoder    string
	MaxSampleTokens int
	MaxRetries      int
	CountTokens     func(string) int
}

// NewDiscoverer creates a Discoverer with the provided parameters.
func NewDiscoverer(params NewDiscovererParams) *Discoverer {
	encoder := params.TokenEncoder
	if encoder == "" {
		encoder = "o200k_base"
	}
	maxTokens := params.MaxSampleTokens
	if maxTokens <= 0 {
		maxTokens = 24000
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Discoverer{
		tokenEncoder:    encoder,
		maxSampleTokens: maxTokens,
		maxRetries:      maxRetries,
		countTokens:     params.CountTokens,
	}
}

// Discover submits a bounded sample of the corpus to the model and parses
// the proposed schema into a validated Ontology. The model response is
// treated as untrusted input: an invalid proposal triggers exactly one
// corrective re-prompt before the discovery fails with ErrDiscovery.
func (d *Discoverer) Discover(
	ctx context.Context,
	units []common.Unit,
	client ai.GraphAIClient,
) (Ontology, error) {
	sample, err := d.sampleCorpus(units)
	if err != nil {
		return Ontology{}, err
	}
	if strings.TrimSpace(sample) == "" {
		return Ontology{}, fmt.Errorf("%w: corpus contains no text", ErrDiscovery)
	}

	onto, problem, err := d.propose(ctx, sample, client, "")
	if err != nil {
		return Ontology{}, err
	}
	if problem == "" {
		return onto, nil
	}

	logger.Warn("[Ontology] Discovery proposal invalid, re-prompting once", "problem", problem)
	onto, problem, err = d.propose(ctx, sample, client, problem)
	if err != nil {
		return Ontology{}, err
	}
	if problem != "" {
		return Ontology{}, fmt.Errorf("%w: %s", ErrDiscovery, problem)
	}
	return onto, nil
}

// propose performs one model round-trip. A non-empty problem return means
// the response parsed but failed validation; transport and provider
// errors are returned as errors after bounded retries with backoff.
func (d *Discoverer) propose(
	ctx context.Context,
	sample string,
	client ai.GraphAIClient,
	previousProblem string,
) (Ontology, string, error) {
	prompts := []string{ai.DiscoverPrompt}
	if previousProblem != "" {
		prompts = append(prompts, fmt.Sprintf(ai.DiscoverRetryPrompt, previousProblem))
	}

	res, err := util.RetryBackoffWithContext(ctx, d.maxRetries, time.Second, func(ctx context.Context) (discoverResponse, error) {
		var out discoverResponse
		err := client.GenerateCompletionWithFormat(
			ctx,
			"propose_graph_schema",
			"Propose entity types and relation types for a knowledge graph built from the provided corpus sample.",
			sample,
			&out,
			ai.WithSystemPrompts(prompts...),
		)
		return out, err
	})
	if err != nil {
		return Ontology{}, "", fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	onto := responseToOntology(res)
	onto.Normalize()
	if err := onto.Validate(); err != nil {
		return Ontology{}, err.Error(), nil
	}
	if len(onto.Entities) == 0 {
		return Ontology{}, "proposal contains no entity types", nil
	}
	return onto, "", nil
}

func (d *Discoverer) sampleCorpus(units []common.Unit) (string, error) {
	if d.countTokens == nil {
		enc, err := tiktoken.GetEncoding(d.tokenEncoder)
		if err != nil {
			return "", fmt.Errorf("failed to load token encoder %q: %w", d.tokenEncoder, err)
		}
		d.countTokens = func(text string) int {
			return len(enc.Encode(text, nil, nil))
		}
	}

	var b strings.Builder
	used := 0
	for _, u := range units {
		tokens := d.countTokens(u.Text)
		if used+tokens > d.maxSampleTokens {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(u.Text)
		used += tokens
	}
	return b.String(), nil
}

func responseToOntology(res discoverResponse) Ontology {
	onto := Ontology{}
	for _, e := range res.Entities {
		et := EntityType{Label: sanitizeLabel(e.Label)}
		for _, a := range e.Attributes {
			et.Attributes = append(et.Attributes, Attribute{
				Name:     strings.TrimSpace(a.Name),
				Type:     AttrType(strings.TrimSpace(a.Type)),
				Unique:   a.Unique,
				Required: a.Required,
			})
		}
		onto.Entities = append(onto.Entities, et)
	}
	for _, r := range res.Relations {
		onto.Relations = append(onto.Relations, RelationType{
			Label:  sanitizeLabel(r.Label),
			Source: sanitizeLabel(r.Source),
			Target: sanitizeLabel(r.Target),
		})
	}
	return onto
}

// sanitizeLabel makes a label safe for use in graph query statements,
// mirroring how instance labels are sanitized at the store boundary.
func sanitizeLabel(label string) string {
	return strings.ReplaceAll(strings.TrimSpace(label), " ", "_")
}
