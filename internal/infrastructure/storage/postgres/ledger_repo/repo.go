// Package ledger_repo is the PostgreSQL Ledger Store.
//
// Every method runs on the transaction carried by ctx when there is one, and
// on the pool otherwise. Row locks are taken with SELECT ... FOR UPDATE.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	tableProducts = "products"
	tableLots     = "stock_lots"
	tableSales    = "sales_records"
	tableDiscards = "stock_discards"
)

var (
	productCols = postgres.ExtractDBColumns[ledger.Product]()
	lotCols     = postgres.ExtractDBColumns[ledger.StockLot]()
	discardCols = postgres.ExtractDBColumns[ledger.DiscardRecord]()
)

// Repo implements ledger.Repository.
type Repo struct {
	txm *postgres.TxManager
}

var _ ledger.Repository = (*Repo)(nil)

// New creates a repository bound to txm.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

// builder returns a squirrel builder with PostgreSQL placeholder format.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *Repo) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// exec runs a write and returns the affected row count.
func (r *Repo) exec(ctx context.Context, op string, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}
	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(err, op)
	}
	return tag.RowsAffected(), nil
}

// get scans exactly one row into dst; no row is NotFound(entity, key).
func (r *Repo) get(ctx context.Context, op string, dst any, q squirrel.Sqlizer, entity string, key any) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	if err := pgxscan.Get(ctx, r.querier(ctx), dst, sql, args...); err != nil {
		if postgres.IsNoRows(err) {
			return apperror.NewNotFound(entity, key)
		}
		return postgres.MapError(err, op)
	}
	return nil
}

// list scans all rows into dst.
func (r *Repo) list(ctx context.Context, op string, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), dst, sql, args...); err != nil {
		return postgres.MapError(err, op)
	}
	return nil
}
