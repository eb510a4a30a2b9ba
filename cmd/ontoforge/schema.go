package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ontoforge/ontoforge/pkg/ontology"
	"github.com/ontoforge/ontoforge/pkg/query"
	"github.com/ontoforge/ontoforge/pkg/store"
)

// schemaReport loads the ontology, connects the store when counts are
// requested and renders the schema report.
func schemaReport(ctx context.Context, withCounts bool) (*query.SchemaReport, error) {
	onto, err := loadOntology()
	if err != nil {
		return nil, err
	}

	var storage store.GraphStorage
	if withCounts {
		aiClient, err := newAIClient()
		if err != nil {
			return nil, err
		}
		storage, err = newStorage(ctx, aiClient)
		if err != nil {
			return nil, err
		}
		defer storage.Close(ctx)
	} else {
		storage = noopStorage{}
	}

	return query.Schema(ctx, &onto, storage, withCounts)
}

func formatAttributes(attrs []ontology.Attribute) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		p := a.Name + ":" + string(a.Type)
		if a.Unique {
			p += "*"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}

func newSchemaCmd() *cobra.Command {
	var withCounts bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "List the entity and relation types of the current ontology",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			report, err := schemaReport(ctx, withCounts)
			if err != nil {
				return err
			}

			printf("entity types:")
			for _, e := range report.Entities {
				line := "  " + e.Label + " [" + formatAttributes(e.Attributes) + "]"
				if e.Count != nil {
					printf("%s (%d instances)", line, *e.Count)
				} else {
					printf("%s", line)
				}
			}
			printf("relation types:")
			for _, r := range report.Relations {
				line := "  " + r.Label + ": " + r.Source + " -> " + r.Target
				if r.Count != nil {
					printf("%s (%d instances)", line, *r.Count)
				} else {
					printf("%s", line)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withCounts, "counts", false, "include live instance counts from the graph store")
	return cmd
}

func newRelationsCmd() *cobra.Command {
	var withCounts bool

	cmd := &cobra.Command{
		Use:   "relations",
		Short: "List the relation types of the current ontology",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			report, err := schemaReport(ctx, withCounts)
			if err != nil {
				return err
			}

			for _, r := range report.Relations {
				line := r.Label + ": " + r.Source + " -> " + r.Target
				if r.Count != nil {
					printf("%s (%d instances)", line, *r.Count)
				} else {
					printf("%s", line)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withCounts, "counts", false, "include live instance counts from the graph store")
	return cmd
}

func newConceptsCmd() *cobra.Command {
	var label string
	var withCounts bool

	cmd := &cobra.Command{
		Use:   "concepts",
		Short: "List the entity types of the current ontology",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			report, err := schemaReport(ctx, withCounts)
			if err != nil {
				return err
			}

			for _, e := range report.Entities {
				if label != "" && e.Label != label {
					continue
				}
				line := e.Label + " [" + formatAttributes(e.Attributes) + "]"
				if e.Count != nil {
					printf("%s (%d instances)", line, *e.Count)
				} else {
					printf("%s", line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "show only the entity type with this label")
	cmd.Flags().BoolVar(&withCounts, "counts", false, "include live instance counts from the graph store")
	return cmd
}

// noopStorage backs count-free schema listings so no store connection is
// needed just to print the ontology.
type noopStorage struct{}

func (noopStorage) UpsertNode(ctx context.Context, ref store.NodeRef, attrs map[string]string) error {
	return store.ErrUnavailable
}

func (noopStorage) UpsertEdge(ctx context.Context, label string, source store.NodeRef, target store.NodeRef, attrs map[string]string) error {
	return store.ErrUnavailable
}

func (noopStorage) CountNodes(ctx context.Context, label string) (int64, error) {
	return 0, store.ErrUnavailable
}

func (noopStorage) CountEdges(ctx context.Context, label string) (int64, error) {
	return 0, store.ErrUnavailable
}

func (noopStorage) Ping(ctx context.Context) error { return store.ErrUnavailable }

func (noopStorage) Close(ctx context.Context) error { return nil }
