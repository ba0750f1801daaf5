package subscriber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

func product(name string, version int, stock int64) ledger.Product {
	return ledger.Product{
		ID:           id.New(),
		Name:         name,
		Price:        types.MustMoney("5"),
		OverallStock: stock,
		Version:      version,
		CreatedAt:    time.Now().UTC(),
	}
}

func lotOf(p ledger.Product, remaining int64, version int) ledger.LotView {
	return ledger.LotView{
		StockLot: ledger.StockLot{
			ID:             id.New(),
			ProductID:      p.ID,
			StockReceived:  remaining,
			RemainingStock: remaining,
			Version:        version,
			CreatedAt:      time.Now().UTC(),
		},
		ProductName: p.Name,
	}
}

func TestSnapshot_AddedIsInsertIfAbsent(t *testing.T) {
	snap := NewSnapshot()
	bread := product("Bread", 1, 0)

	ev := ledger.Event{Seq: 1, Kind: ledger.ProductAdded, Product: &bread}
	assert.True(t, snap.Apply(ev))
	assert.False(t, snap.Apply(ev), "second apply must be a no-op")

	assert.Len(t, snap.Products(), 1)
}

func TestSnapshot_UpdatedIsReplaceIfPresentAndNewer(t *testing.T) {
	snap := NewSnapshot()
	bread := product("Bread", 2, 0)
	snap.Seed([]ledger.Product{bread}, nil)

	older := bread
	older.Version = 1
	older.Name = "Stale"
	assert.False(t, snap.Apply(ledger.Event{Kind: ledger.ProductUpdated, Product: &older}))

	newer := bread
	newer.Version = 3
	newer.Name = "Rye bread"
	assert.True(t, snap.Apply(ledger.Event{Kind: ledger.ProductUpdated, Product: &newer}))
	assert.False(t, snap.Apply(ledger.Event{Kind: ledger.ProductUpdated, Product: &newer}))

	got, ok := snap.Product(bread.ID)
	require.True(t, ok)
	assert.Equal(t, "Rye bread", got.Name)

	unknown := product("Milk", 5, 0)
	assert.False(t, snap.Apply(ledger.Event{Kind: ledger.ProductUpdated, Product: &unknown}))
	_, ok = snap.Product(unknown.ID)
	assert.False(t, ok)
}

func TestSnapshot_LotEventsRefreshOwner(t *testing.T) {
	snap := NewSnapshot()
	bread := product("Bread", 1, 0)
	snap.Seed([]ledger.Product{bread}, nil)

	lot := lotOf(bread, 100, 1)
	owner := bread
	owner.Version = 2
	owner.OverallStock = 100
	require.True(t, snap.Apply(ledger.Event{Kind: ledger.LotAdded, Lot: &lot, Product: &owner}))

	got, _ := snap.Product(bread.ID)
	assert.Equal(t, int64(100), got.OverallStock)

	discarded := lot
	discarded.Version = 2
	discarded.RemainingStock = 80
	discarded.Discarded = 20
	owner.Version = 3
	owner.OverallStock = 80
	require.True(t, snap.Apply(ledger.Event{Kind: ledger.LotDiscarded, Lot: &discarded, Product: &owner}))

	gotLot, ok := snap.Lot(lot.ID)
	require.True(t, ok)
	assert.Equal(t, int64(80), gotLot.RemainingStock)
	got, _ = snap.Product(bread.ID)
	assert.Equal(t, int64(80), got.OverallStock)

	lotID := lot.ID
	owner.Version = 4
	owner.OverallStock = 0
	require.True(t, snap.Apply(ledger.Event{
		Kind:    ledger.LotDeleted,
		Deleted: &ledger.DeletedRef{ProductID: bread.ID, ProductName: "Bread", LotID: &lotID},
		Product: &owner,
	}))
	_, ok = snap.Lot(lot.ID)
	assert.False(t, ok)
	got, _ = snap.Product(bread.ID)
	assert.Equal(t, int64(0), got.OverallStock)
}

func TestSnapshot_ProductDeletionDropsItsLots(t *testing.T) {
	snap := NewSnapshot()
	bread := product("Bread", 1, 10)
	milk := product("Milk", 1, 5)
	snap.Seed(
		[]ledger.Product{bread, milk},
		[]ledger.LotView{lotOf(bread, 10, 1), lotOf(milk, 5, 1)},
	)

	ev := ledger.Event{Kind: ledger.ProductDeleted, Deleted: &ledger.DeletedRef{ProductID: bread.ID, ProductName: "Bread"}}
	assert.True(t, snap.Apply(ev))
	assert.False(t, snap.Apply(ev))

	assert.Len(t, snap.Products(), 1)
	lots := snap.Lots()
	require.Len(t, lots, 1)
	assert.Equal(t, milk.ID, lots[0].ProductID)
}

func TestSnapshot_LotAddedAfterOwnerDeletedIsDropped(t *testing.T) {
	snap := NewSnapshot()
	bread := product("Bread", 1, 0)
	snap.Seed([]ledger.Product{bread}, nil)

	require.True(t, snap.Apply(ledger.Event{
		Seq:     2,
		Kind:    ledger.ProductDeleted,
		Deleted: &ledger.DeletedRef{ProductID: bread.ID, ProductName: "Bread"},
	}))

	lot := lotOf(bread, 10, 1)
	owner := bread
	owner.Version = 2
	owner.OverallStock = 10
	assert.False(t, snap.Apply(ledger.Event{Seq: 3, Kind: ledger.LotAdded, Lot: &lot, Product: &owner}))

	assert.Empty(t, snap.Lots())
	assert.Empty(t, snap.Products())
}

func TestSnapshot_SeedReplacesState(t *testing.T) {
	snap := NewSnapshot()
	snap.Seed([]ledger.Product{product("Old", 1, 0)}, nil)

	fresh := product("Fresh", 1, 0)
	snap.Seed([]ledger.Product{fresh}, nil)

	products := snap.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "Fresh", products[0].Name)
}
