package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// LotHandler serves /lots.
type LotHandler struct {
	*BaseHandler
	engine *ledger.Engine
}

// NewLotHandler creates a lot handler.
func NewLotHandler(base *BaseHandler, engine *ledger.Engine) *LotHandler {
	return &LotHandler{BaseHandler: base, engine: engine}
}

// List handles GET /lots.
func (h *LotHandler) List(c *gin.Context) {
	lots, err := h.engine.GetAllLots(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(lots))
}

// Get handles GET /lots/:id.
func (h *LotHandler) Get(c *gin.Context) {
	lotID, ok := h.ParamID(c)
	if !ok {
		return
	}
	lot, err := h.engine.GetLot(c.Request.Context(), lotID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, lot)
}

// Discards handles GET /lots/:id/discards.
func (h *LotHandler) Discards(c *gin.Context) {
	lotID, ok := h.ParamID(c)
	if !ok {
		return
	}
	records, err := h.engine.GetLotDiscards(c.Request.Context(), lotID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(records))
}

// Create handles POST /lots: receiving a new lot.
func (h *LotHandler) Create(c *gin.Context) {
	var req dto.ReceiveLotRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	lot, err := h.engine.ReceiveLot(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, lot)
}

// Update handles PUT /lots/:id, a correction of the receiving record.
// Besides 404 and 400, it answers 422 INVALID_AMOUNT when the lot already
// has discards: its remaining stock can no longer be re-based on the
// corrected received figure.
func (h *LotHandler) Update(c *gin.Context) {
	lotID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.UpdateLotRequest
	if !h.BindJSON(c, &req) {
		return
	}
	correction, err := req.ToCorrection()
	if err != nil {
		h.Error(c, err)
		return
	}
	lot, err := h.engine.UpdateLot(c.Request.Context(), lotID, correction)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, lot)
}

// Delete handles DELETE /lots/:id.
func (h *LotHandler) Delete(c *gin.Context) {
	lotID, ok := h.ParamID(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteLot(c.Request.Context(), lotID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Discard handles POST /lots/:id/discard.
func (h *LotHandler) Discard(c *gin.Context) {
	lotID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.DiscardRequest
	if !h.BindJSON(c, &req) {
		return
	}
	lot, err := h.engine.DiscardFromLot(c.Request.Context(), lotID, *req.Amount)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, lot)
}
