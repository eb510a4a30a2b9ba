package main

import (
	"github.com/spf13/cobra"

	"github.com/ontoforge/ontoforge/internal/util"
	"github.com/ontoforge/ontoforge/pkg/graph"
)

func newBuildCmd() *cobra.Command {
	var initialDir string
	var additionalDir string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Discover the ontology and ingest the corpus into the graph store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			if initialDir == "" {
				initialDir = util.GetEnvString("INITIAL_CORPUS_DIR", "corpus/initial")
			}
			if additionalDir == "" {
				additionalDir = util.GetEnv("ADDITIONAL_CORPUS_DIR")
			}

			aiClient, err := newAIClient()
			if err != nil {
				return err
			}
			storage, err := newStorage(ctx, aiClient)
			if err != nil {
				return err
			}
			defer storage.Close(ctx)

			report, err := newBuilder().Build(ctx, initialDir, additionalDir, aiClient, storage)
			if report != nil {
				printReport(report)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&initialDir, "initial", "", "directory of the initial PDF corpus (default $INITIAL_CORPUS_DIR)")
	cmd.Flags().StringVar(&additionalDir, "additional", "", "directory of the additional PDF corpus (default $ADDITIONAL_CORPUS_DIR)")
	return cmd
}

func printReport(report *graph.BuildReport) {
	printf("run %s finished in state %s", report.RunID, report.State)
	for _, w := range report.Warnings {
		printf("warning: %s", w)
	}
	printPass := func(name string, r *graph.IngestReport) {
		if r == nil {
			return
		}
		printf("%s pass: %d/%d documents loaded (%d skipped), %d/%d units ingested (%d failed), %d nodes, %d edges",
			name, r.DocsLoaded, r.DocsTotal, r.DocsFailed,
			r.UnitsIngested, r.UnitsTotal, r.UnitsFailed,
			r.NodesUpserted, r.EdgesUpserted)
	}
	printPass("initial", report.Initial)
	printPass("full", report.Full)
}
