package ledger

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/pkg/logger"
)

// Reads run outside transactions. A missing row is NotFound; any other
// failure is reported as StoreFailure.

// GetProducts lists every product, newest first, with its units sold.
func (e *Engine) GetProducts(ctx context.Context) ([]ProductSummary, error) {
	items, err := e.repo.ListProducts(ctx)
	if err != nil {
		return nil, classify("GetProducts", err)
	}
	if items == nil {
		items = []ProductSummary{}
	}
	return items, nil
}

// GetProduct returns one product with aggregates over its lots.
func (e *Engine) GetProduct(ctx context.Context, prodID id.ID) (*ProductDetail, error) {
	detail, err := e.repo.GetProductDetail(ctx, prodID)
	if err != nil {
		return nil, classify("GetProduct", err)
	}
	detail.BelowMinimum = detail.Product.BelowMinimum()
	return detail, nil
}

// GetAllLots lists every lot with its product name, newest first.
func (e *Engine) GetAllLots(ctx context.Context) ([]LotView, error) {
	lots, err := e.repo.ListLots(ctx)
	if err != nil {
		return nil, classify("GetAllLots", err)
	}
	if lots == nil {
		lots = []LotView{}
	}
	return lots, nil
}

// GetLot returns one lot with its product name.
func (e *Engine) GetLot(ctx context.Context, lotID id.ID) (*LotView, error) {
	lot, err := e.repo.GetLot(ctx, lotID)
	if err != nil {
		return nil, classify("GetLot", err)
	}
	return lot, nil
}

// GetLotDiscards returns the discard history of a lot, oldest first.
func (e *Engine) GetLotDiscards(ctx context.Context, lotID id.ID) ([]DiscardRecord, error) {
	if _, err := e.repo.GetLot(ctx, lotID); err != nil {
		return nil, classify("GetLotDiscards", err)
	}
	items, err := e.repo.ListDiscards(ctx, lotID)
	if err != nil {
		return nil, classify("GetLotDiscards", err)
	}
	if items == nil {
		items = []DiscardRecord{}
	}
	return items, nil
}

// VerifyStock lists products whose OverallStock does not equal the sum of
// their lots' remaining stock. An empty result means the ledger is consistent.
func (e *Engine) VerifyStock(ctx context.Context) ([]StockDrift, error) {
	drifts, err := e.repo.StockDrifts(ctx)
	if err != nil {
		return nil, classify("VerifyStock", err)
	}
	if drifts == nil {
		drifts = []StockDrift{}
	}
	for _, d := range drifts {
		logger.Warn(ctx, "overall stock drift",
			"prod_id", d.ProductID,
			"overall_stock", d.OverallStock,
			"lot_remaining", d.LotRemaining,
		)
	}
	return drifts, nil
}
