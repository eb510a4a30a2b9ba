package common

import (
	"sort"
	"strings"
)

// Unit represents a contiguous segment of text extracted from a document.
// Units are the smallest pieces submitted to the extraction model, and the
// provenance of everything written to the graph store.
type Unit struct {
	ID    string `json:"id"`
	DocID string `json:"doc_id"`
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Entity is one extracted entity instance: an instance of an ontology
// entity type together with its attribute values. The identity of an
// entity is derived from the values of the attributes its type declares
// unique (see Key).
type Entity struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Relationship is one extracted relationship instance connecting a source
// entity to a target entity, both referenced by type and identity key.
type Relationship struct {
	Type       string            `json:"type"`
	Source     Entity            `json:"source"`
	Target     Entity            `json:"target"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Key derives the identity key of an entity from the given unique
// attribute names. Multiple values are joined in attribute-name order so
// composite keys are stable regardless of extraction order.
func (e Entity) Key(uniqueAttrs []string) string {
	if len(uniqueAttrs) == 0 {
		return ""
	}
	sorted := make([]string, len(uniqueAttrs))
	copy(sorted, uniqueAttrs)
	sort.Strings(sorted)

	parts := make([]string, 0, len(sorted))
	for _, name := range sorted {
		parts = append(parts, strings.TrimSpace(e.Attributes[name]))
	}
	return strings.Join(parts, "\x1f")
}
