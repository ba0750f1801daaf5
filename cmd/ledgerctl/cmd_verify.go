package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every product's overall stock equals the sum of its lots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		store, err := e.openStore(false)
		if err != nil {
			return err
		}
		defer store.Close()

		drifts, err := store.Engine(e.cfg, nil).VerifyStock(e.ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(drifts) == 0 {
			fmt.Fprintln(out, "ok: overall stock matches lot remaining stock for every product")
			return nil
		}
		for _, d := range drifts {
			fmt.Fprintf(out, "%s\t%s\toverall=%d\tlots=%d\n", d.ProductID, d.ProductName, d.OverallStock, d.LotRemaining)
		}
		return fmt.Errorf("%d product(s) with stock drift", len(drifts))
	},
}
