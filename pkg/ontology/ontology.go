package ontology

import (
	"fmt"
	"strings"
)

// AttrType is the primitive type of an attribute value.
type AttrType string

const (
	AttrString  AttrType = "string"
	AttrNumber  AttrType = "number"
	AttrBoolean AttrType = "boolean"
)

// Attribute declares one attribute of an entity or relation type.
type Attribute struct {
	Name     string   `json:"name"`
	Type     AttrType `json:"type"`
	Unique   bool     `json:"unique"`
	Required bool     `json:"required"`
}

// EntityType declares one node category of the graph: a label and an
// ordered list of attribute declarations.
type EntityType struct {
	Label      string      `json:"label"`
	Attributes []Attribute `json:"attributes"`
}

// RelationType declares one edge category: a label plus the source and
// target entity type labels it connects.
type RelationType struct {
	Label      string      `json:"label"`
	Source     string      `json:"source"`
	Target     string      `json:"target"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Ontology is the schema of the knowledge graph: the set of entity types
// and relation types instances must conform to.
//
// A valid ontology has unique entity type labels, unique
// (label, source, target) relation identities, and no relation referencing
// an entity type that is not part of the same ontology.
type Ontology struct {
	Entities  []EntityType   `json:"entities"`
	Relations []RelationType `json:"relations"`
}

// EntityType returns the entity type with the given label.
func (o *Ontology) EntityType(label string) (EntityType, bool) {
	for _, e := range o.Entities {
		if e.Label == label {
			return e, true
		}
	}
	return EntityType{}, false
}

// RelationType returns the first relation type with the given label.
func (o *Ontology) RelationType(label string) (RelationType, bool) {
	for _, r := range o.Relations {
		if r.Label == label {
			return r, true
		}
	}
	return RelationType{}, false
}

// IsEmpty reports whether the ontology declares no types at all.
func (o *Ontology) IsEmpty() bool {
	return len(o.Entities) == 0 && len(o.Relations) == 0
}

// UniqueAttributes returns the names of the attributes that identify an
// instance of this entity type.
func (e EntityType) UniqueAttributes() []string {
	var names []string
	for _, a := range e.Attributes {
		if a.Unique {
			names = append(names, a.Name)
		}
	}
	return names
}

// Validate checks the ontology invariants: non-empty unique entity labels,
// every entity type identifiable by at least one unique attribute, unique
// relation identities, and no dangling relation endpoints. An empty
// ontology is valid.
func (o *Ontology) Validate() error {
	seen := make(map[string]struct{}, len(o.Entities))
	for _, e := range o.Entities {
		if strings.TrimSpace(e.Label) == "" {
			return fmt.Errorf("entity type with empty label")
		}
		if _, dup := seen[e.Label]; dup {
			return fmt.Errorf("duplicate entity type label %q", e.Label)
		}
		seen[e.Label] = struct{}{}

		attrSeen := make(map[string]struct{}, len(e.Attributes))
		for _, a := range e.Attributes {
			if strings.TrimSpace(a.Name) == "" {
				return fmt.Errorf("entity type %q has an attribute with empty name", e.Label)
			}
			if _, dup := attrSeen[a.Name]; dup {
				return fmt.Errorf("entity type %q declares attribute %q twice", e.Label, a.Name)
			}
			attrSeen[a.Name] = struct{}{}
		}
		if len(e.UniqueAttributes()) == 0 {
			return fmt.Errorf("entity type %q has no unique attribute", e.Label)
		}
	}

	relSeen := make(map[string]struct{}, len(o.Relations))
	for _, r := range o.Relations {
		if strings.TrimSpace(r.Label) == "" {
			return fmt.Errorf("relation type with empty label")
		}
		if _, ok := seen[r.Source]; !ok {
			return fmt.Errorf("relation type %q references unknown source entity type %q", r.Label, r.Source)
		}
		if _, ok := seen[r.Target]; !ok {
			return fmt.Errorf("relation type %q references unknown target entity type %q", r.Label, r.Target)
		}
		id := r.identity()
		if _, dup := relSeen[id]; dup {
			return fmt.Errorf("duplicate relation type %s", id)
		}
		relSeen[id] = struct{}{}
	}

	return nil
}

// Normalize fills in the defaults the wire format allows to be omitted:
// attribute types default to string, and an entity type without any unique
// attribute gets one. If the type declares attributes, its first attribute
// becomes the identity; a type with no attributes at all gains a required
// unique "name" attribute.
func (o *Ontology) Normalize() {
	for i := range o.Entities {
		e := &o.Entities[i]
		for j := range e.Attributes {
			if e.Attributes[j].Type == "" {
				e.Attributes[j].Type = AttrString
			}
		}
		if len(e.Attributes) == 0 {
			e.Attributes = []Attribute{{Name: "name", Type: AttrString, Unique: true, Required: true}}
			continue
		}
		if len(e.UniqueAttributes()) == 0 {
			e.Attributes[0].Unique = true
			e.Attributes[0].Required = true
		}
	}
	for i := range o.Relations {
		r := &o.Relations[i]
		for j := range r.Attributes {
			if r.Attributes[j].Type == "" {
				r.Attributes[j].Type = AttrString
			}
		}
	}
}

func (r RelationType) identity() string {
	return fmt.Sprintf("%s(%s->%s)", r.Label, r.Source, r.Target)
}

// Describe renders the ontology as a compact human-readable listing, used
// both for prompt construction and for the schema command.
func (o *Ontology) Describe() string {
	var b strings.Builder
	b.WriteString("Entity types:\n")
	for _, e := range o.Entities {
		names := make([]string, 0, len(e.Attributes))
		for _, a := range e.Attributes {
			n := fmt.Sprintf("%s:%s", a.Name, a.Type)
			if a.Unique {
				n += " (unique)"
			}
			names = append(names, n)
		}
		fmt.Fprintf(&b, "- %s [%s]\n", e.Label, strings.Join(names, ", "))
	}
	b.WriteString("Relation types:\n")
	for _, r := range o.Relations {
		fmt.Fprintf(&b, "- %s: %s -> %s\n", r.Label, r.Source, r.Target)
	}
	return b.String()
}
