package main

import (
	"github.com/spf13/cobra"

	"stockledger/internal/infrastructure/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		// OpenStore would migrate on its own with auto_migrate; do it explicitly here.
		e.cfg.Database.AutoMigrate = false
		store, err := e.openStore(true)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := postgres.Migrate(e.ctx, store.Pool); err != nil {
			return err
		}
		e.log.Info("schema applied")
		return nil
	},
}
