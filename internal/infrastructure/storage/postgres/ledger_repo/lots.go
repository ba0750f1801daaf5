package ledger_repo

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

var (
	lotReturning = "RETURNING " + strings.Join(lotCols, ", ")
	lotColsL     = postgres.Qualify("l", lotCols)
)

func updateLotQuery(lot *ledger.StockLot) squirrel.UpdateBuilder {
	return builder().Update(tableLots).
		Set("stock_received", lot.StockReceived).
		Set("reject_stock", lot.RejectStock).
		Set("remaining_stock", lot.RemainingStock).
		Set("discarded", lot.Discarded).
		Set("total_losses", lot.TotalLosses).
		Set("expiry_date", lot.ExpiryDate).
		Set("updated_at", lot.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": lot.ID}).
		Suffix(lotReturning)
}

// lotViewQuery joins the product name. Without foreign keys a lot may briefly
// outlive its product inside a DeleteProduct transaction, hence the LEFT JOIN.
func lotViewQuery() squirrel.SelectBuilder {
	return builder().
		Select(lotColsL...).
		Column("COALESCE(p.name, '') AS product_name").
		From(tableLots + " l").
		LeftJoin(tableProducts + " p ON p.id = l.product_id")
}

func listLotsQuery() squirrel.SelectBuilder {
	return lotViewQuery().OrderBy("l.created_at DESC", "l.id DESC")
}

func lockLotQuery(lotID id.ID) squirrel.SelectBuilder {
	return builder().Select(lotCols...).From(tableLots).Where(squirrel.Eq{"id": lotID}).Suffix("FOR UPDATE")
}

// InsertLot implements ledger.LotRepository.
func (r *Repo) InsertLot(ctx context.Context, lot *ledger.StockLot) error {
	_, err := r.exec(ctx, "insert lot", builder().Insert(tableLots).SetMap(postgres.StructToMap(lot)))
	return err
}

// UpdateLot implements ledger.LotRepository.
func (r *Repo) UpdateLot(ctx context.Context, lot *ledger.StockLot) error {
	var out ledger.StockLot
	if err := r.get(ctx, "update lot", &out, updateLotQuery(lot), ledger.EntityLot, lot.ID); err != nil {
		return err
	}
	*lot = out
	return nil
}

// GetLot implements ledger.LotRepository.
func (r *Repo) GetLot(ctx context.Context, lotID id.ID) (*ledger.LotView, error) {
	var v ledger.LotView
	q := lotViewQuery().Where(squirrel.Eq{"l.id": lotID})
	if err := r.get(ctx, "get lot", &v, q, ledger.EntityLot, lotID); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetLotForUpdate implements ledger.LotRepository.
func (r *Repo) GetLotForUpdate(ctx context.Context, lotID id.ID) (*ledger.StockLot, error) {
	var lot ledger.StockLot
	if err := r.get(ctx, "lock lot", &lot, lockLotQuery(lotID), ledger.EntityLot, lotID); err != nil {
		return nil, err
	}
	return &lot, nil
}

// DeleteLot implements ledger.LotRepository.
func (r *Repo) DeleteLot(ctx context.Context, lotID id.ID) error {
	n, err := r.exec(ctx, "delete lot", builder().Delete(tableLots).Where(squirrel.Eq{"id": lotID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound(ledger.EntityLot, lotID)
	}
	return nil
}

// DeleteLotsByProduct implements ledger.LotRepository.
func (r *Repo) DeleteLotsByProduct(ctx context.Context, prodID id.ID) (int64, error) {
	return r.exec(ctx, "delete product lots", builder().Delete(tableLots).Where(squirrel.Eq{"product_id": prodID}))
}

// ListLots implements ledger.LotRepository.
func (r *Repo) ListLots(ctx context.Context) ([]ledger.LotView, error) {
	var items []ledger.LotView
	if err := r.list(ctx, "list lots", &items, listLotsQuery()); err != nil {
		return nil, err
	}
	return items, nil
}

// --- Sales records ---

// InsertSalesRecord implements ledger.LotRepository.
func (r *Repo) InsertSalesRecord(ctx context.Context, rec ledger.SalesRecord) error {
	_, err := r.exec(ctx, "insert sales record", builder().Insert(tableSales).SetMap(postgres.StructToMap(rec)))
	return err
}

// DeleteSalesRecord implements ledger.LotRepository.
func (r *Repo) DeleteSalesRecord(ctx context.Context, lotID id.ID) error {
	_, err := r.exec(ctx, "delete sales record", builder().Delete(tableSales).Where(squirrel.Eq{"lot_id": lotID}))
	return err
}

// DeleteSalesRecordsByProduct implements ledger.LotRepository.
func (r *Repo) DeleteSalesRecordsByProduct(ctx context.Context, prodID id.ID) error {
	_, err := r.exec(ctx, "delete product sales records", builder().Delete(tableSales).Where(squirrel.Eq{"product_id": prodID}))
	return err
}

// --- Discard history ---

// InsertDiscard implements ledger.LotRepository.
func (r *Repo) InsertDiscard(ctx context.Context, rec *ledger.DiscardRecord) error {
	_, err := r.exec(ctx, "insert discard", builder().Insert(tableDiscards).SetMap(postgres.StructToMap(rec)))
	return err
}

// ListDiscards implements ledger.LotRepository.
func (r *Repo) ListDiscards(ctx context.Context, lotID id.ID) ([]ledger.DiscardRecord, error) {
	q := builder().Select(discardCols...).From(tableDiscards).
		Where(squirrel.Eq{"lot_id": lotID}).
		OrderBy("discarded_at", "id")

	var items []ledger.DiscardRecord
	if err := r.list(ctx, "list discards", &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteDiscardsByLot implements ledger.LotRepository.
func (r *Repo) DeleteDiscardsByLot(ctx context.Context, lotID id.ID) error {
	_, err := r.exec(ctx, "delete lot discards", builder().Delete(tableDiscards).Where(squirrel.Eq{"lot_id": lotID}))
	return err
}

// DeleteDiscardsByProduct implements ledger.LotRepository.
func (r *Repo) DeleteDiscardsByProduct(ctx context.Context, prodID id.ID) error {
	_, err := r.exec(ctx, "delete product discards", builder().Delete(tableDiscards).Where(squirrel.Eq{"product_id": prodID}))
	return err
}
