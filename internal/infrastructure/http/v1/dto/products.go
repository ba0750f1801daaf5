package dto

import (
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

// CreateProductRequest is the body of POST /products.
// Price accepts a JSON number or a decimal string.
type CreateProductRequest struct {
	Name          string      `json:"name" binding:"required,max=200"`
	Description   string      `json:"description" binding:"max=2000"`
	Price         types.Money `json:"price"`
	MinStockLevel int64       `json:"minStockLevel" binding:"min=0"`
}

// ToInput converts the request to the engine input.
func (r CreateProductRequest) ToInput() ledger.NewProduct {
	return ledger.NewProduct{
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		MinStockLevel: r.MinStockLevel,
	}
}

// UpdateProductRequest is the body of PUT /products/:id. Absent fields keep
// their stored value.
type UpdateProductRequest struct {
	Name          *string      `json:"name" binding:"omitempty,max=200"`
	Description   *string      `json:"description" binding:"omitempty,max=2000"`
	Price         *types.Money `json:"price"`
	MinStockLevel *int64       `json:"minStockLevel" binding:"omitempty,min=0"`
}

// ToPatch converts the request to the engine patch.
func (r UpdateProductRequest) ToPatch() ledger.ProductPatch {
	return ledger.ProductPatch{
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		MinStockLevel: r.MinStockLevel,
	}
}
