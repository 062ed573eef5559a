package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check storage connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.manager.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("storage unhealthy: %w", err)
			}
			stats := a.manager.Stats()
			fmt.Printf("storage ok (open=%v idle=%v in_use=%v)\n",
				stats["open_connections"], stats["idle"], stats["in_use"])
			return nil
		},
	}
	return cmd
}
