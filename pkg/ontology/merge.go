package ontology

import (
	"errors"
	"fmt"
)

// ErrMergeInconsistency marks a merge result that violates the ontology
// invariants. With valid inputs this cannot happen; it is an internal
// logic fault and fatal to the running build.
var ErrMergeInconsistency = errors.New("merged ontology is inconsistent")

// ConflictPolicy decides which declaration wins when an attribute exists
// in both ontologies with a different declared type.
type ConflictPolicy int

const (
	// PreferExisting keeps the persisted declaration. This favors schema
	// stability: instances already in the store keep matching their
	// declared types.
	PreferExisting ConflictPolicy = iota
	// PreferDiscovered adopts the newly discovered declaration instead.
	PreferDiscovered
)

// PolicyFromString maps a configuration value to a ConflictPolicy,
// defaulting to PreferExisting.
func PolicyFromString(s string) ConflictPolicy {
	if s == "discovered" {
		return PreferDiscovered
	}
	return PreferExisting
}

// Merge combines a previously persisted ontology with a newly discovered
// one into a single consistent schema.
//
// A nil existing ontology means no schema was ever persisted; the
// discovered ontology is returned unchanged. Otherwise entity types are
// unioned by label and their attributes unioned by name, with type
// collisions resolved by policy. Relation types are unioned by
// (label, source, target); a discovered relation whose endpoints do not
// resolve in the merged entity set is dropped and reported as a warning
// rather than failing the merge.
//
// Merge is idempotent: merging an ontology with itself yields an
// equivalent ontology.
func Merge(existing *Ontology, discovered Ontology, policy ConflictPolicy) (Ontology, []string, error) {
	if existing == nil {
		if err := discovered.Validate(); err != nil {
			return Ontology{}, nil, fmt.Errorf("%w: %w", ErrMergeInconsistency, err)
		}
		return discovered, nil, nil
	}

	var warnings []string
	merged := Ontology{}

	merged.Entities = append(merged.Entities, copyEntities(existing.Entities)...)
	for _, de := range discovered.Entities {
		idx := indexOfEntity(merged.Entities, de.Label)
		if idx < 0 {
			merged.Entities = append(merged.Entities, copyEntity(de))
			continue
		}
		var w []string
		merged.Entities[idx], w = mergeEntityType(merged.Entities[idx], de, policy)
		warnings = append(warnings, w...)
	}

	merged.Relations = append(merged.Relations, copyRelations(existing.Relations)...)
	for _, dr := range discovered.Relations {
		if indexOfRelation(merged.Relations, dr) >= 0 {
			continue
		}
		if _, ok := mergedEntity(merged.Entities, dr.Source); !ok {
			warnings = append(warnings, fmt.Sprintf("dropped relation %s: unknown source entity type %q", dr.identity(), dr.Source))
			continue
		}
		if _, ok := mergedEntity(merged.Entities, dr.Target); !ok {
			warnings = append(warnings, fmt.Sprintf("dropped relation %s: unknown target entity type %q", dr.identity(), dr.Target))
			continue
		}
		merged.Relations = append(merged.Relations, copyRelation(dr))
	}

	if err := merged.Validate(); err != nil {
		return Ontology{}, warnings, fmt.Errorf("%w: %w", ErrMergeInconsistency, err)
	}
	return merged, warnings, nil
}

func mergeEntityType(existing EntityType, discovered EntityType, policy ConflictPolicy) (EntityType, []string) {
	var warnings []string
	out := copyEntity(existing)
	for _, da := range discovered.Attributes {
		idx := -1
		for i, a := range out.Attributes {
			if a.Name == da.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			// An attribute new to a persisted type never joins its identity:
			// already stored instances were keyed without it, so widening the
			// key set would re-create every one of them under a new key.
			added := da
			if added.Unique {
				added.Unique = false
				warnings = append(warnings, fmt.Sprintf("attribute %s.%s added without identity flag: identity of a persisted entity type is immutable", existing.Label, da.Name))
			}
			out.Attributes = append(out.Attributes, added)
			continue
		}
		if out.Attributes[idx].Type != da.Type && policy == PreferDiscovered {
			out.Attributes[idx].Type = da.Type
		}
		// Uniqueness and requiredness of the existing declaration are kept
		// in either policy: they define node identity in the store.
	}
	return out, warnings
}

func mergedEntity(entities []EntityType, label string) (EntityType, bool) {
	idx := indexOfEntity(entities, label)
	if idx < 0 {
		return EntityType{}, false
	}
	return entities[idx], true
}

func indexOfEntity(entities []EntityType, label string) int {
	for i, e := range entities {
		if e.Label == label {
			return i
		}
	}
	return -1
}

func indexOfRelation(relations []RelationType, r RelationType) int {
	for i, existing := range relations {
		if existing.Label == r.Label && existing.Source == r.Source && existing.Target == r.Target {
			return i
		}
	}
	return -1
}

func copyEntities(entities []EntityType) []EntityType {
	out := make([]EntityType, 0, len(entities))
	for _, e := range entities {
		out = append(out, copyEntity(e))
	}
	return out
}

func copyEntity(e EntityType) EntityType {
	if e.Attributes != nil {
		attrs := make([]Attribute, len(e.Attributes))
		copy(attrs, e.Attributes)
		e.Attributes = attrs
	}
	return e
}

func copyRelations(relations []RelationType) []RelationType {
	out := make([]RelationType, 0, len(relations))
	for _, r := range relations {
		out = append(out, copyRelation(r))
	}
	return out
}

func copyRelation(r RelationType) RelationType {
	if r.Attributes != nil {
		attrs := make([]Attribute, len(r.Attributes))
		copy(attrs, r.Attributes)
		r.Attributes = attrs
	}
	return r
}
