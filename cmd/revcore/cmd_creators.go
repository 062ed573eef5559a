package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func creatorsCmd(ctx context.Context) *cobra.Command {
	var (
		creatorID int64
		asof      string
		lookback  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "creators",
		Short: "Show a creator's trailing average integrity score",
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now().UTC()
			if asof != "" {
				var err error
				at, err = time.Parse(time.RFC3339, asof)
				if err != nil {
					return fmt.Errorf("invalid --asof %q: %w", asof, err)
				}
			}
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			avg, ok, err := a.writer.CreatorTrailingEIS(cmd.Context(), creatorID, at, lookback)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("creator %d: no scored videos in the trailing %s\n", creatorID, lookback)
				return nil
			}
			fmt.Printf("creator %d: trailing EIS %.2f over %s\n", creatorID, avg, lookback)
			return nil
		},
	}
	cmd.Flags().Int64Var(&creatorID, "creator", 0, "creator id")
	cmd.Flags().StringVar(&asof, "asof", "", "evaluate as of this instant (RFC3339, default now)")
	cmd.Flags().DurationVar(&lookback, "lookback", 7*24*time.Hour, "trailing lookback")
	_ = cmd.MarkFlagRequired("creator")
	return cmd
}
