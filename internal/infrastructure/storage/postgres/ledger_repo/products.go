package ledger_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

var (
	productReturning = "RETURNING " + strings.Join(productCols, ", ")
	productColsP     = postgres.Qualify("p", productCols)
)

func insertProductQuery(p *ledger.Product) squirrel.InsertBuilder {
	return builder().Insert(tableProducts).SetMap(postgres.StructToMap(p))
}

func updateProductQuery(p *ledger.Product) squirrel.UpdateBuilder {
	return builder().Update(tableProducts).
		Set("name", p.Name).
		Set("description", p.Description).
		Set("price", p.Price).
		Set("min_stock_level", p.MinStockLevel).
		Set("updated_at", p.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": p.ID}).
		Suffix(productReturning)
}

func selectProductQuery(prodID id.ID) squirrel.SelectBuilder {
	return builder().Select(productCols...).From(tableProducts).Where(squirrel.Eq{"id": prodID})
}

func nameTakenQuery(name string, exclude id.ID) squirrel.SelectBuilder {
	return builder().Select().Column(squirrel.Expr(
		"EXISTS (SELECT 1 FROM products WHERE lower(name) = lower(?) AND id <> ?)", name, exclude,
	))
}

func adjustStockQuery(prodID id.ID, delta int64) squirrel.UpdateBuilder {
	return builder().Update(tableProducts).
		Set("overall_stock", squirrel.Expr("overall_stock + ?", delta)).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": prodID}).
		Suffix(productReturning)
}

func listProductsQuery() squirrel.SelectBuilder {
	return builder().
		Select(productColsP...).
		Column("COALESCE(SUM(s.units_sold), 0)::bigint AS total_sold").
		From(tableProducts + " p").
		LeftJoin(tableSales + " s ON s.product_id = p.id").
		GroupBy("p.id").
		OrderBy("p.created_at DESC", "p.id DESC")
}

func productDetailQuery(prodID id.ID) squirrel.SelectBuilder {
	return builder().
		Select(productColsP...).
		Columns(
			"COUNT(l.id) AS lot_count",
			"COALESCE(SUM(l.remaining_stock), 0)::bigint AS total_remaining",
			"COALESCE(SUM(l.discarded), 0)::bigint AS total_discarded",
			"COALESCE(SUM(s.units_sold), 0)::bigint AS total_sold",
			"COALESCE(SUM(s.revenue), 0) AS total_revenue",
			"COALESCE(SUM(l.total_losses), 0) AS total_losses",
		).
		From(tableProducts + " p").
		LeftJoin(tableLots + " l ON l.product_id = p.id").
		LeftJoin(tableSales + " s ON s.lot_id = l.id").
		Where(squirrel.Eq{"p.id": prodID}).
		GroupBy("p.id")
}

func stockDriftsQuery() squirrel.SelectBuilder {
	return builder().
		Select(
			"p.id AS product_id",
			"p.name AS product_name",
			"p.overall_stock",
			"COALESCE(SUM(l.remaining_stock), 0)::bigint AS lot_remaining",
		).
		From(tableProducts + " p").
		LeftJoin(tableLots + " l ON l.product_id = p.id").
		GroupBy("p.id").
		Having("p.overall_stock <> COALESCE(SUM(l.remaining_stock), 0)").
		OrderBy("p.name")
}

// InsertProduct implements ledger.ProductRepository.
func (r *Repo) InsertProduct(ctx context.Context, p *ledger.Product) error {
	_, err := r.exec(ctx, "insert product", insertProductQuery(p))
	return r.nameConflict(err, p.Name)
}

// UpdateProduct implements ledger.ProductRepository.
func (r *Repo) UpdateProduct(ctx context.Context, p *ledger.Product) error {
	var out ledger.Product
	err := r.get(ctx, "update product", &out, updateProductQuery(p), ledger.EntityProduct, p.ID)
	if err != nil {
		return r.nameConflict(err, p.Name)
	}
	*p = out
	return nil
}

// nameConflict turns a violation of the unique product name index into DuplicateName.
func (r *Repo) nameConflict(err error, name string) error {
	if err != nil && postgres.PgErrorCode(err) == postgres.CodeUniqueViolation {
		return apperror.NewDuplicateName(ledger.EntityProduct, name).WithCause(err)
	}
	return err
}

// GetProduct implements ledger.ProductRepository.
func (r *Repo) GetProduct(ctx context.Context, prodID id.ID) (*ledger.Product, error) {
	var p ledger.Product
	if err := r.get(ctx, "get product", &p, selectProductQuery(prodID), ledger.EntityProduct, prodID); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductForUpdate implements ledger.ProductRepository.
func (r *Repo) GetProductForUpdate(ctx context.Context, prodID id.ID) (*ledger.Product, error) {
	var p ledger.Product
	q := selectProductQuery(prodID).Suffix("FOR UPDATE")
	if err := r.get(ctx, "lock product", &p, q, ledger.EntityProduct, prodID); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProductNameTaken implements ledger.ProductRepository.
func (r *Repo) ProductNameTaken(ctx context.Context, name string, exclude id.ID) (bool, error) {
	sql, args, err := nameTakenQuery(name, exclude).ToSql()
	if err != nil {
		return false, fmt.Errorf("build name check: %w", err)
	}
	var taken bool
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&taken); err != nil {
		return false, postgres.MapError(err, "check product name")
	}
	return taken, nil
}

// AdjustOverallStock implements ledger.ProductRepository.
func (r *Repo) AdjustOverallStock(ctx context.Context, prodID id.ID, delta int64) (*ledger.Product, error) {
	var p ledger.Product
	if err := r.get(ctx, "adjust overall stock", &p, adjustStockQuery(prodID, delta), ledger.EntityProduct, prodID); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct implements ledger.ProductRepository.
func (r *Repo) DeleteProduct(ctx context.Context, prodID id.ID) error {
	n, err := r.exec(ctx, "delete product", builder().Delete(tableProducts).Where(squirrel.Eq{"id": prodID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound(ledger.EntityProduct, prodID)
	}
	return nil
}

// ListProducts implements ledger.ProductRepository.
func (r *Repo) ListProducts(ctx context.Context) ([]ledger.ProductSummary, error) {
	var items []ledger.ProductSummary
	if err := r.list(ctx, "list products", &items, listProductsQuery()); err != nil {
		return nil, err
	}
	return items, nil
}

// GetProductDetail implements ledger.ProductRepository.
func (r *Repo) GetProductDetail(ctx context.Context, prodID id.ID) (*ledger.ProductDetail, error) {
	var d ledger.ProductDetail
	if err := r.get(ctx, "get product detail", &d, productDetailQuery(prodID), ledger.EntityProduct, prodID); err != nil {
		return nil, err
	}
	return &d, nil
}

// StockDrifts implements ledger.ProductRepository.
func (r *Repo) StockDrifts(ctx context.Context) ([]ledger.StockDrift, error) {
	var items []ledger.StockDrift
	if err := r.list(ctx, "stock drifts", &items, stockDriftsQuery()); err != nil {
		return nil, err
	}
	return items, nil
}
