package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/common"
	"github.com/ontoforge/ontoforge/pkg/logger"
	"github.com/ontoforge/ontoforge/pkg/ontology"
)

type extractAttribute struct {
	Name  string `json:"name" jsonschema_description:"Attribute name, exactly as declared for the entity type"`
	Value string `json:"value" jsonschema_description:"Attribute value found in the text"`
}

type extractEntity struct {
	Type       string             `json:"type" jsonschema_description:"One of the declared entity type labels"`
	Attributes []extractAttribute `json:"attributes" jsonschema_description:"Attribute values, including every required attribute of the type"`
}

type extractRelationship struct {
	Type   string        `json:"type" jsonschema_description:"One of the declared relation type labels"`
	Source extractEntity `json:"source" jsonschema_description:"The source entity, as identified in the entities list"`
	Target extractEntity `json:"target" jsonschema_description:"The target entity, as identified in the entities list"`
}

type extractResponse struct {
	Entities      []extractEntity       `json:"entities" jsonschema_description:"Entity instances identified in the text"`
	Relationships []extractRelationship `json:"relationships" jsonschema_description:"Relationship instances identified in the text"`
}

// extractFromUnit submits one unit to the extraction model and maps the
// response onto the ontology. Instances that do not conform are dropped
// with a log line rather than failing the unit: an unknown type, a missing
// identity value or an unresolved relationship endpoint only loses that
// one instance.
func extractFromUnit(
	ctx context.Context,
	unit common.Unit,
	onto *ontology.Ontology,
	client ai.GraphAIClient,
) ([]common.Entity, []common.Relationship, error) {
	systemPrompt := fmt.Sprintf(ai.ExtractPrompt, onto.Describe(), unit.DocID)

	var res extractResponse
	err := client.GenerateCompletionWithFormat(
		ctx,
		"extract_graph_instances",
		"Extract entity and relationship instances conforming to the declared schema from the provided text.",
		unit.Text,
		&res,
		ai.WithSystemPrompts(systemPrompt),
	)
	if err != nil {
		return nil, nil, err
	}

	entities := make([]common.Entity, 0, len(res.Entities))
	for _, e := range res.Entities {
		entity, ok := conformEntity(e, onto, unit.ID)
		if !ok {
			continue
		}
		entities = append(entities, entity)
	}

	relations := make([]common.Relationship, 0, len(res.Relationships))
	for _, r := range res.Relationships {
		relType, ok := onto.RelationType(strings.TrimSpace(r.Type))
		if !ok {
			logger.Debug("[Graph] Dropping relationship of undeclared type", "type", r.Type, "unit", unit.ID)
			continue
		}
		source, ok := conformEntity(r.Source, onto, unit.ID)
		if !ok || source.Type != relType.Source {
			logger.Debug("[Graph] Dropping relationship with unresolved source", "type", r.Type, "unit", unit.ID)
			continue
		}
		target, ok := conformEntity(r.Target, onto, unit.ID)
		if !ok || target.Type != relType.Target {
			logger.Debug("[Graph] Dropping relationship with unresolved target", "type", r.Type, "unit", unit.ID)
			continue
		}
		relations = append(relations, common.Relationship{
			Type:   relType.Label,
			Source: source,
			Target: target,
		})
	}

	return entities, relations, nil
}

// conformEntity maps one extracted entity onto its declared type. Unknown
// attributes are dropped; an entity without a complete identity key is
// rejected.
func conformEntity(e extractEntity, onto *ontology.Ontology, unitID string) (common.Entity, bool) {
	entityType, ok := onto.EntityType(strings.TrimSpace(e.Type))
	if !ok {
		logger.Debug("[Graph] Dropping entity of undeclared type", "type", e.Type, "unit", unitID)
		return common.Entity{}, false
	}

	declared := make(map[string]struct{}, len(entityType.Attributes))
	for _, a := range entityType.Attributes {
		declared[a.Name] = struct{}{}
	}

	attrs := make(map[string]string, len(e.Attributes))
	for _, a := range e.Attributes {
		name := strings.TrimSpace(a.Name)
		if _, ok := declared[name]; !ok {
			continue
		}
		value := strings.TrimSpace(a.Value)
		if value == "" {
			continue
		}
		attrs[name] = value
	}

	entity := common.Entity{Type: entityType.Label, Attributes: attrs}
	for _, name := range entityType.UniqueAttributes() {
		if attrs[name] == "" {
			logger.Debug("[Graph] Dropping entity without identity value",
				"type", entityType.Label, "attribute", name, "unit", unitID)
			return common.Entity{}, false
		}
	}
	return entity, true
}
