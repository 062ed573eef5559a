package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func scoreCmd(ctx context.Context) *cobra.Command {
	var (
		win      windowFlags
		videoIDs []int64
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score video windows and persist aggregates",
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

			res, err := a.writer.RunWindow(cmd.Context(), w, videoIDs)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	win.register(cmd)
	cmd.Flags().Int64SliceVar(&videoIDs, "videos", nil, "restrict scoring to these video ids")
	return cmd
}
