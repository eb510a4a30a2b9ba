package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ontoforge/ontoforge/pkg/query"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a natural-language question over the built graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			question := strings.Join(args, " ")

			onto, err := loadOntology()
			if err != nil {
				return err
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

			answer, err := query.Ask(ctx, question, &onto, storage, aiClient)
			if err != nil {
				return err
			}
			printf("%s", answer)
			return nil
		},
	}
}
