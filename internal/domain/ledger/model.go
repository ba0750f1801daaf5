// Package ledger implements the stock ledger: products, received lots, their
// remaining stock, discards and accumulated losses.
//
// The Engine is the only writer. Each mutation runs as one transaction against
// the Repository and, once committed, publishes exactly one Event.
package ledger

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

const maxProductNameLen = 200

// Product is a sellable item. OverallStock is derived from its lots and only
// ever changes together with a lot write.
type Product struct {
	ID            id.ID       `db:"id" json:"prodId"`
	Name          string      `db:"name" json:"name"`
	Description   string      `db:"description" json:"description"`
	Price         types.Money `db:"price" json:"price"`
	MinStockLevel int64       `db:"min_stock_level" json:"minStockLevel"`
	OverallStock  int64       `db:"overall_stock" json:"overallStock"`
	Version       int         `db:"version" json:"version"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updatedAt"`
}

// BelowMinimum reports whether stock has fallen under the reorder level.
func (p *Product) BelowMinimum() bool {
	return p.OverallStock < p.MinStockLevel
}

// ProductSummary is a row of the full product listing.
type ProductSummary struct {
	Product
	TotalSold int64 `db:"total_sold" json:"totalSold"`
}

// ProductDetail is a product with aggregates over all of its lots.
type ProductDetail struct {
	Product
	LotCount       int64       `db:"lot_count" json:"lotCount"`
	TotalRemaining int64       `db:"total_remaining" json:"totalRemaining"`
	TotalDiscarded int64       `db:"total_discarded" json:"totalDiscarded"`
	TotalSold      int64       `db:"total_sold" json:"totalSold"`
	TotalRevenue   types.Money `db:"total_revenue" json:"totalRevenue"`
	TotalLosses    types.Money `db:"total_losses" json:"totalLosses"`
	BelowMinimum   bool        `db:"-" json:"belowMinimum"`
}

// StockLot is one received batch of a product.
type StockLot struct {
	ID             id.ID       `db:"id" json:"lotId"`
	ProductID      id.ID       `db:"product_id" json:"prodId"`
	StockReceived  int64       `db:"stock_received" json:"stockReceived"`
	RejectStock    int64       `db:"reject_stock" json:"rejectStock"`
	RemainingStock int64       `db:"remaining_stock" json:"remainingStock"`
	Discarded      int64       `db:"discarded" json:"discarded"`
	TotalLosses    types.Money `db:"total_losses" json:"totalLosses"`
	ExpiryDate     time.Time   `db:"expiry_date" json:"expiryDate"`
	Version        int         `db:"version" json:"version"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`
}

// CheckInvariants verifies the quantity rules every persisted lot satisfies.
func (l *StockLot) CheckInvariants() error {
	switch {
	case l.StockReceived < 0 || l.RejectStock < 0 || l.RemainingStock < 0 || l.Discarded < 0:
		return apperror.NewInvalidAmount("lot quantities must not be negative").
			WithDetail("lot_id", l.ID.String())
	case l.RemainingStock+l.Discarded > l.StockReceived:
		return apperror.NewInvalidAmount("remaining plus discarded exceeds received stock").
			WithDetail("lot_id", l.ID.String()).
			WithDetail("remaining", l.RemainingStock).
			WithDetail("discarded", l.Discarded).
			WithDetail("received", l.StockReceived)
	}
	return nil
}

// LotView is a lot joined with its product's name, as shown to viewers.
type LotView struct {
	StockLot
	ProductName string `db:"product_name" json:"prodName"`
}

// SalesRecord holds the append-only sales counters of a lot.
type SalesRecord struct {
	LotID     id.ID       `db:"lot_id" json:"lotId"`
	ProductID id.ID       `db:"product_id" json:"prodId"`
	UnitsSold int64       `db:"units_sold" json:"unitsSold"`
	Revenue   types.Money `db:"revenue" json:"revenue"`
}

// DiscardRecord is one entry of a lot's discard history.
type DiscardRecord struct {
	ID          id.ID       `db:"id" json:"id"`
	LotID       id.ID       `db:"lot_id" json:"lotId"`
	ProductID   id.ID       `db:"product_id" json:"prodId"`
	Amount      int64       `db:"amount" json:"amount"`
	UnitPrice   types.Money `db:"unit_price" json:"unitPrice"`
	Loss        types.Money `db:"loss" json:"loss"`
	DiscardedAt time.Time   `db:"discarded_at" json:"discardedAt"`
}

// StockDrift reports a product whose OverallStock disagrees with its lots.
type StockDrift struct {
	ProductID    id.ID  `db:"product_id" json:"prodId"`
	ProductName  string `db:"product_name" json:"prodName"`
	OverallStock int64  `db:"overall_stock" json:"overallStock"`
	LotRemaining int64  `db:"lot_remaining" json:"lotRemaining"`
}

// --- Inputs ---

// NewProduct is the input of CreateProduct.
type NewProduct struct {
	Name          string
	Description   string
	Price         types.Money
	MinStockLevel int64
}

func (in *NewProduct) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Price = types.Normalize(in.Price)
}

// Validate checks required fields and ranges.
func (in NewProduct) Validate() error {
	return validateProductFields(in.Name, in.Price, in.MinStockLevel)
}

// ProductPatch lists the mutable product fields; nil means unchanged.
type ProductPatch struct {
	Name          *string
	Description   *string
	Price         *types.Money
	MinStockLevel *int64
}

// IsEmpty reports whether the patch changes nothing.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.MinStockLevel == nil
}

// applyTo writes the patch onto prod and returns the changed fields.
func (p ProductPatch) applyTo(prod *Product) map[string]any {
	changes := make(map[string]any)
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name != prod.Name {
			changes["name"] = map[string]any{"old": prod.Name, "new": name}
			prod.Name = name
		}
	}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		if desc != prod.Description {
			changes["description"] = map[string]any{"old": prod.Description, "new": desc}
			prod.Description = desc
		}
	}
	if p.Price != nil {
		price := types.Normalize(*p.Price)
		if !price.Equal(prod.Price) {
			changes["price"] = map[string]any{"old": prod.Price.String(), "new": price.String()}
			prod.Price = price
		}
	}
	if p.MinStockLevel != nil && *p.MinStockLevel != prod.MinStockLevel {
		changes["min_stock_level"] = map[string]any{"old": prod.MinStockLevel, "new": *p.MinStockLevel}
		prod.MinStockLevel = *p.MinStockLevel
	}
	return changes
}

// ReceiveLotInput is the input of ReceiveLot.
type ReceiveLotInput struct {
	ProductID     id.ID
	StockReceived int64
	RejectStock   int64
	ExpiryDate    time.Time
}

// Validate checks required fields and ranges.
func (in ReceiveLotInput) Validate() error {
	if id.IsNil(in.ProductID) {
		return apperror.NewValidation("product id is required").WithDetail("field", "prodId")
	}
	return validateLotFields(in.StockReceived, in.RejectStock, in.ExpiryDate)
}

// LotCorrection is the input of UpdateLot: a corrected receiving record.
type LotCorrection struct {
	StockReceived int64
	RejectStock   int64
	ExpiryDate    time.Time
}

// Validate checks required fields and ranges.
func (in LotCorrection) Validate() error {
	return validateLotFields(in.StockReceived, in.RejectStock, in.ExpiryDate)
}

func validateProductFields(name string, price types.Money, minStock int64) error {
	switch {
	case name == "":
		return apperror.NewValidation("product name is required").WithDetail("field", "name")
	case len(name) > maxProductNameLen:
		return apperror.NewValidation("product name is too long").
			WithDetail("field", "name").
			WithDetail("max", maxProductNameLen)
	case price.IsNegative():
		return apperror.NewValidation("price must not be negative").WithDetail("field", "price")
	case minStock < 0:
		return apperror.NewValidation("minimum stock level must not be negative").
			WithDetail("field", "minStockLevel")
	}
	return nil
}

func validateLotFields(received, rejected int64, expiry time.Time) error {
	switch {
	case received < 0:
		return apperror.NewValidation("stock received must not be negative").WithDetail("field", "stockReceived")
	case rejected < 0:
		return apperror.NewValidation("reject stock must not be negative").WithDetail("field", "rejectStock")
	case expiry.IsZero():
		return apperror.NewValidation("expiry date is required").WithDetail("field", "expiryDate")
	}
	return nil
}
