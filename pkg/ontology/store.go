package ontology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists the ontology as human-readable JSON at a fixed path.
// It is the sole owner of the on-disk schema representation; the presence
// of the file is the signal that a build has run before.
type FileStore struct {
	path string
}

// NewFileStore creates a store for the given ontology file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the ontology file path.
func (s *FileStore) Path() string {
	return s.path
}

// wire format mirrors the persisted JSON layout: relation endpoints are
// nested objects so the file stays self-describing.
type wireEndpoint struct {
	Label string `json:"label"`
}

type wireRelation struct {
	Label      string       `json:"label"`
	Source     wireEndpoint `json:"source"`
	Target     wireEndpoint `json:"target"`
	Attributes []Attribute  `json:"attributes,omitempty"`
}

type wireOntology struct {
	Entities  []EntityType   `json:"entities"`
	Relations []wireRelation `json:"relations"`
}

// Load reads the persisted ontology. The second return value is false when
// no ontology has ever been saved; that is not an error. A file that
// exists but cannot be parsed or validated is an error.
func (s *FileStore) Load() (Ontology, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Ontology{}, false, nil
	}
	if err != nil {
		return Ontology{}, false, fmt.Errorf("failed to read ontology file %s: %w", s.path, err)
	}

	var wire wireOntology
	if err := json.Unmarshal(data, &wire); err != nil {
		return Ontology{}, false, fmt.Errorf("failed to parse ontology file %s: %w", s.path, err)
	}

	onto := fromWire(wire)
	onto.Normalize()
	if err := onto.Validate(); err != nil {
		return Ontology{}, false, fmt.Errorf("ontology file %s is invalid: %w", s.path, err)
	}
	return onto, true, nil
}

// Save atomically overwrites the persisted ontology. The file is written
// to a temp location in the same directory and renamed into place, so a
// concurrent reader never observes a partially written schema.
func (s *FileStore) Save(onto Ontology) error {
	if err := onto.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid ontology: %w", err)
	}

	data, err := json.MarshalIndent(toWire(onto), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ontology: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ontology-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp ontology file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp ontology file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp ontology file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp ontology file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace ontology file %s: %w", s.path, err)
	}
	return nil
}

func toWire(onto Ontology) wireOntology {
	wire := wireOntology{
		Entities:  onto.Entities,
		Relations: make([]wireRelation, 0, len(onto.Relations)),
	}
	if wire.Entities == nil {
		wire.Entities = []EntityType{}
	}
	for _, r := range onto.Relations {
		wire.Relations = append(wire.Relations, wireRelation{
			Label:      r.Label,
			Source:     wireEndpoint{Label: r.Source},
			Target:     wireEndpoint{Label: r.Target},
			Attributes: r.Attributes,
		})
	}
	return wire
}

func fromWire(wire wireOntology) Ontology {
	onto := Ontology{
		Entities:  wire.Entities,
		Relations: make([]RelationType, 0, len(wire.Relations)),
	}
	for _, r := range wire.Relations {
		onto.Relations = append(onto.Relations, RelationType{
			Label:      r.Label,
			Source:     r.Source.Label,
			Target:     r.Target.Label,
			Attributes: r.Attributes,
		})
	}
	return onto
}
