package ledger

import (
	"context"

	"stockledger/internal/core/id"
)

// ProductRepository persists products.
// Lookups of missing rows return apperror NotFound.
type ProductRepository interface {
	InsertProduct(ctx context.Context, p *Product) error

	// UpdateProduct writes the mutable fields, increments the version and
	// refreshes p from the stored row.
	UpdateProduct(ctx context.Context, p *Product) error

	GetProduct(ctx context.Context, prodID id.ID) (*Product, error)

	// GetProductForUpdate reads the product and locks its row until the
	// transaction ends.
	GetProductForUpdate(ctx context.Context, prodID id.ID) (*Product, error)

	// ProductNameTaken reports whether another product (not exclude) already
	// uses name, compared case-insensitively.
	ProductNameTaken(ctx context.Context, name string, exclude id.ID) (bool, error)

	// AdjustOverallStock adds delta to the product's overall stock in place
	// and returns the row after the change.
	AdjustOverallStock(ctx context.Context, prodID id.ID, delta int64) (*Product, error)

	DeleteProduct(ctx context.Context, prodID id.ID) error

	ListProducts(ctx context.Context) ([]ProductSummary, error)
	GetProductDetail(ctx context.Context, prodID id.ID) (*ProductDetail, error)

	// StockDrifts lists products whose overall stock differs from the sum of
	// their lots' remaining stock.
	StockDrifts(ctx context.Context) ([]StockDrift, error)
}

// LotRepository persists lots and the rows they own (sales record, discard history).
type LotRepository interface {
	InsertLot(ctx context.Context, lot *StockLot) error

	// UpdateLot writes the mutable fields, increments the version and
	// refreshes lot from the stored row.
	UpdateLot(ctx context.Context, lot *StockLot) error

	GetLot(ctx context.Context, lotID id.ID) (*LotView, error)

	// GetLotForUpdate reads the lot and locks its row until the transaction ends.
	GetLotForUpdate(ctx context.Context, lotID id.ID) (*StockLot, error)

	DeleteLot(ctx context.Context, lotID id.ID) error
	DeleteLotsByProduct(ctx context.Context, prodID id.ID) (int64, error)
	ListLots(ctx context.Context) ([]LotView, error)

	InsertSalesRecord(ctx context.Context, rec SalesRecord) error
	DeleteSalesRecord(ctx context.Context, lotID id.ID) error
	DeleteSalesRecordsByProduct(ctx context.Context, prodID id.ID) error

	InsertDiscard(ctx context.Context, rec *DiscardRecord) error
	ListDiscards(ctx context.Context, lotID id.ID) ([]DiscardRecord, error)
	DeleteDiscardsByLot(ctx context.Context, lotID id.ID) error
	DeleteDiscardsByProduct(ctx context.Context, prodID id.ID) error
}

// Repository is the Ledger Store as seen by the Engine.
type Repository interface {
	ProductRepository
	LotRepository
}

// AuditAction names the audited mutation.
type AuditAction string

const (
	AuditCreate  AuditAction = "create"
	AuditUpdate  AuditAction = "update"
	AuditDelete  AuditAction = "delete"
	AuditReceive AuditAction = "receive"
	AuditCorrect AuditAction = "correct"
	AuditDiscard AuditAction = "discard"
)

// Audit entity types.
const (
	EntityProduct = "product"
	EntityLot     = "stock_lot"
)

// AuditRecord is written inside the mutation's transaction.
type AuditRecord struct {
	EntityType string
	EntityID   id.ID
	Action     AuditAction
	Changes    map[string]any
}

// Auditor stores audit records. It runs inside the engine's transaction, so
// a failing Auditor rolls the mutation back.
type Auditor interface {
	Record(ctx context.Context, rec AuditRecord) error
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, AuditRecord) error { return nil }
