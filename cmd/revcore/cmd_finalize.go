package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clipwave/revcore/internal/revwin"
)

func finalizeCmd(ctx context.Context) *cobra.Command {
	var (
		win         windowFlags
		paymentType string
		gross       int64
		taxes       int64
		fees        int64
		refunds     int64
		costs       int64
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Finalize a revenue window: allocate the creator pool and write the ledger",
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

			in := revwin.Inputs{
				GrossCents:    gross,
				TaxesCents:    taxes,
				FeesCents:     fees,
				RefundsCents:  refunds,
				CostsEstCents: costs,
			}

			var sum revwin.Summary
			err = a.retrier.Do(cmd.Context(), "finalize", func(ctx context.Context) error {
				var err error
				sum, err = a.finalizer.Finalize(ctx, w, paymentType, in, dryRun)
				return err
			})
			if err != nil && !revwin.IsGuardrailed(err) {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(sum); encErr != nil {
				return encErr
			}
			if revwin.IsGuardrailed(err) {
				fmt.Fprintln(os.Stderr, "creator pool zeroed by margin guardrail")
			}
			return nil
		},
	}
	win.register(cmd)
	cmd.Flags().StringVar(&paymentType, "payment-type", "ads", "payment type for this run")
	cmd.Flags().Int64Var(&gross, "gross-cents", 0, "gross revenue in cents")
	cmd.Flags().Int64Var(&taxes, "taxes-cents", 0, "taxes in cents")
	cmd.Flags().Int64Var(&fees, "fees-cents", 0, "processor fees in cents")
	cmd.Flags().Int64Var(&refunds, "refunds-cents", 0, "refunds in cents")
	cmd.Flags().Int64Var(&costs, "costs-cents", 0, "estimated serving costs in cents")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the allocation without writing anything")
	return cmd
}
