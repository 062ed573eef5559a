package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipwave/revcore/internal/persistence/postgres"
)

func schemaCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := postgres.ApplySchema(cmd.Context(), a.manager.DB()); err != nil {
				return err
			}
			fmt.Println("schema applied")
			return nil
		},
	}
	return cmd
}
