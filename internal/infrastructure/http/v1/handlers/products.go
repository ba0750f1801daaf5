package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// ProductHandler serves /products.
type ProductHandler struct {
	*BaseHandler
	engine *ledger.Engine
}

// NewProductHandler creates a product handler.
func NewProductHandler(base *BaseHandler, engine *ledger.Engine) *ProductHandler {
	return &ProductHandler{BaseHandler: base, engine: engine}
}

// List handles GET /products.
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.engine.GetProducts(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(products))
}

// Get handles GET /products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	prodID, ok := h.ParamID(c)
	if !ok {
		return
	}
	detail, err := h.engine.GetProduct(c.Request.Context(), prodID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, detail)
}

// Create handles POST /products.
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.engine.CreateProduct(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Update handles PUT /products/:id.
func (h *ProductHandler) Update(c *gin.Context) {
	prodID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.engine.UpdateProduct(c.Request.Context(), prodID, req.ToPatch())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Delete handles DELETE /products/:id.
func (h *ProductHandler) Delete(c *gin.Context) {
	prodID, ok := h.ParamID(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteProduct(c.Request.Context(), prodID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
