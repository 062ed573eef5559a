package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func unitsCmd(ctx context.Context) *cobra.Command {
	var win windowFlags
	cmd := &cobra.Command{
		Use:   "units",
		Short: "Build value units for a window without allocating",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := win.window()
			if err != nil {
				return err
			}
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.builder.Build(cmd.Context(), w, a.cfg.Params)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	win.register(cmd)
	return cmd
}
