package ledger_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

const productReturningCols = "RETURNING id, name, description, price, min_stock_level, overall_stock, version, created_at, updated_at"

func TestAdjustStockQuery(t *testing.T) {
	prodID := id.New()

	sql, args, err := adjustStockQuery(prodID, -20).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE products SET overall_stock = overall_stock + $1, version = version + 1 WHERE id = $2 "+productReturningCols,
		sql)
	assert.Equal(t, []any{int64(-20), prodID}, args)
}

func TestUpdateProductQuery_NeverTouchesStock(t *testing.T) {
	p := &ledger.Product{ID: id.New(), Name: "Bread", Price: types.MustMoney("5"), UpdatedAt: time.Now()}

	sql, args, err := updateProductQuery(p).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE products SET name = $1, description = $2, price = $3, min_stock_level = $4, updated_at = $5, "+
			"version = version + 1 WHERE id = $6 "+productReturningCols,
		sql)
	assert.NotContains(t, sql, "overall_stock =")
	assert.Len(t, args, 6)
}

func TestNameTakenQuery(t *testing.T) {
	exclude := id.New()

	sql, args, err := nameTakenQuery("Bread", exclude).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT EXISTS (SELECT 1 FROM products WHERE lower(name) = lower($1) AND id <> $2)", sql)
	assert.Equal(t, []any{"Bread", exclude}, args)
}

func TestLockLotQuery(t *testing.T) {
	lotID := id.New()

	sql, args, err := lockLotQuery(lotID).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, product_id, stock_received, reject_stock, remaining_stock, discarded, total_losses, "+
			"expiry_date, version, created_at, updated_at FROM stock_lots WHERE id = $1 FOR UPDATE",
		sql)
	assert.Equal(t, []any{lotID}, args)
}

func TestListQueriesOrderNewestFirst(t *testing.T) {
	sql, _, err := listProductsQuery().ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "LEFT JOIN sales_records s ON s.product_id = p.id")
	assert.Contains(t, sql, "GROUP BY p.id ORDER BY p.created_at DESC, p.id DESC")

	sql, _, err = listLotsQuery().ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "COALESCE(p.name, '') AS product_name FROM stock_lots l LEFT JOIN products p ON p.id = l.product_id")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY l.created_at DESC, l.id DESC"))
}

func TestProductDetailQuery(t *testing.T) {
	prodID := id.New()

	sql, args, err := productDetailQuery(prodID).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "COUNT(l.id) AS lot_count")
	assert.Contains(t, sql, "LEFT JOIN sales_records s ON s.lot_id = l.id")
	assert.Contains(t, sql, "WHERE p.id = $1 GROUP BY p.id")
	assert.Equal(t, []any{prodID}, args)
}

func TestStockDriftsQuery(t *testing.T) {
	sql, args, err := stockDriftsQuery().ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "HAVING p.overall_stock <> COALESCE(SUM(l.remaining_stock), 0)")
	assert.Empty(t, args)
}

func TestInsertProductQuery_UsesAllColumns(t *testing.T) {
	p := &ledger.Product{ID: id.New(), Name: "Bread", Price: types.MustMoney("5"), Version: 1}

	sql, args, err := insertProductQuery(p).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "INSERT INTO products (")
	assert.Len(t, args, len(productCols))
}
