package main

import (
	"time"

	"github.com/spf13/cobra"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

type seedLot struct {
	received, rejected int64
	expiresIn          time.Duration
	discard            int64
}

type seedProduct struct {
	ledger.NewProduct
	lots []seedLot
}

const day = 24 * time.Hour

var demoCatalog = []seedProduct{
	{
		NewProduct: ledger.NewProduct{Name: "Sourdough loaf", Description: "800g, baked daily", Price: types.MustMoney("4.20"), MinStockLevel: 20},
		lots: []seedLot{
			{received: 40, rejected: 2, expiresIn: 3 * day, discard: 5},
			{received: 30, expiresIn: 4 * day},
		},
	},
	{
		NewProduct: ledger.NewProduct{Name: "Whole milk 1L", Price: types.MustMoney("1.15"), MinStockLevel: 50},
		lots: []seedLot{
			{received: 120, rejected: 4, expiresIn: 10 * day},
		},
	},
	{
		NewProduct: ledger.NewProduct{Name: "Free-range eggs (12)", Price: types.MustMoney("3.80"), MinStockLevel: 15},
		lots: []seedLot{
			{received: 24, rejected: 1, expiresIn: 21 * day, discard: 2},
		},
	},
	{
		NewProduct: ledger.NewProduct{Name: "Cheddar 200g", Description: "Mature", Price: types.MustMoney("2.95"), MinStockLevel: 10},
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo products and lots through the ledger engine",
	Long: `Creates a small demo catalog. Products that already exist (by name)
are skipped, so running seed twice is harmless.`,
	Args: cobra.NoArgs,
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

		// Seeding runs out of process, so viewers pick the data up on their next full read.
		engine := store.Engine(e.cfg, ledger.NopPublisher{})
		now := time.Now().UTC()

		var created, skipped int
		for _, sp := range demoCatalog {
			p, err := engine.CreateProduct(e.ctx, sp.NewProduct)
			if apperror.KindOf(err) == apperror.KindDuplicateName {
				skipped++
				continue
			}
			if err != nil {
				return err
			}
			created++

			for _, sl := range sp.lots {
				lot, err := engine.ReceiveLot(e.ctx, ledger.ReceiveLotInput{
					ProductID:     p.ID,
					StockReceived: sl.received,
					RejectStock:   sl.rejected,
					ExpiryDate:    now.Add(sl.expiresIn),
				})
				if err != nil {
					return err
				}
				if sl.discard > 0 {
					if _, err := engine.DiscardFromLot(e.ctx, lot.ID, sl.discard); err != nil {
						return err
					}
				}
			}
		}

		e.log.Infow("seed finished", "products_created", created, "products_skipped", skipped)
		return nil
	},
}
