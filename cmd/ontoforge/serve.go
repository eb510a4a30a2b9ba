package main

import (
	"github.com/spf13/cobra"

	"github.com/ontoforge/ontoforge/internal/server"
	"github.com/ontoforge/ontoforge/internal/util"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schema and question answering over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			if port == "" {
				port = util.GetEnvString("PORT", "8080")
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

			srv := server.NewServer(server.NewServerParams{
				OntoStore: newOntologyStore(),
				Storage:   storage,
				AIClient:  aiClient,
			})
			return srv.Run(ctx, port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "HTTP port (default $PORT or 8080)")
	return cmd
}
