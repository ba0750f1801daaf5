package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

func TestExtractDBColumns_FlattensEmbedded(t *testing.T) {
	cols := ExtractDBColumns[ledger.LotView]()

	assert.Equal(t, "id", cols[0])
	assert.Contains(t, cols, "remaining_stock")
	assert.Contains(t, cols, "product_name")
	assert.Equal(t, "product_name", cols[len(cols)-1])
}

func TestExtractDBColumns_SkipsIgnored(t *testing.T) {
	cols := ExtractDBColumns[ledger.ProductDetail]()

	assert.Contains(t, cols, "total_revenue")
	assert.NotContains(t, cols, "-")
	assert.NotContains(t, cols, "BelowMinimum")
}

func TestStructToMap(t *testing.T) {
	p := ledger.Product{
		ID:            id.New(),
		Name:          "Bread",
		Price:         types.MustMoney("5.00"),
		MinStockLevel: 10,
		Version:       1,
	}

	m := StructToMap(&p)

	assert.Equal(t, p.ID, m["id"])
	assert.Equal(t, "Bread", m["name"])
	assert.Equal(t, int64(10), m["min_stock_level"])
	assert.Equal(t, 1, m["version"])
	assert.Len(t, m, len(ExtractDBColumns[ledger.Product]()))
}

func TestQualify(t *testing.T) {
	assert.Equal(t, []string{"l.id", "l.name"}, Qualify("l", []string{"id", "name"}))
}
