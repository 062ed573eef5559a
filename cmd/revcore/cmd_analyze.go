package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func analyzeCmd(ctx context.Context) *cobra.Command {
	var (
		win     windowFlags
		videoID int64
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score one video window and print the full component breakdown",
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

			details, err := a.writer.Analyze(cmd.Context(), videoID, w)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(details)
		},
	}
	win.register(cmd)
	cmd.Flags().Int64Var(&videoID, "video", 0, "video id to analyze")
	_ = cmd.MarkFlagRequired("video")
	return cmd
}
