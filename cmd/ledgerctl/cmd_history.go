package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stockledger/internal/core/id"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <product-or-lot-id>",
	Short: "Print the audit trail of a product or lot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityID, err := id.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}

		e, err := setup(cmd)
		if err != nil {
			return err
		}
		store, err := e.openStore(true)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Audit.History(e.ctx, entityID, historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no audit entries")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tENTITY\tACTION\tREQUEST\tCHANGES")
		for _, entry := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				entry.CreatedAt.Format("2006-01-02 15:04:05"),
				entry.EntityType,
				entry.Action,
				entry.RequestID,
				string(entry.Changes),
			)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of entries, newest first")
}
