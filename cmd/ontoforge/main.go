package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ontoforge/ontoforge/internal/util"
	"github.com/ontoforge/ontoforge/pkg/logger"
)

var (
	flagDebug    bool
	flagOntology string
	flagModel    string
)

func main() {
	root := &cobra.Command{
		Use:   "ontoforge",
		Short: "Build and query an ontology-backed knowledge graph from a PDF corpus",
		Long: `ontoforge discovers a schema from a corpus of PDF documents, evolves it
across runs, ingests the corpus into a graph store and answers natural-language
questions over the result.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.LoadEnv()
			logger.Init(logger.NewConsoleBackend(flagDebug))
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&flagOntology, "ontology", "", "path of the ontology file (default $ONTOLOGY_PATH or ontology.json)")
	root.PersistentFlags().StringVar(&flagModel, "model", "", "override the answer model")

	root.AddCommand(
		newBuildCmd(),
		newAskCmd(),
		newSchemaCmd(),
		newRelationsCmd(),
		newConceptsCmd(),
		newServeCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func ontologyPath() string {
	if flagOntology != "" {
		return flagOntology
	}
	return util.GetEnvString("ONTOLOGY_PATH", "ontology.json")
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}
