package dto

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

// Accepted expiry date layouts.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02"}

func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperror.NewValidation("invalid date").
		WithDetail("field", field).
		WithDetail("value", s).
		WithDetail("formats", []string{"RFC3339", "YYYY-MM-DD"})
}

// ReceiveLotRequest is the body of POST /lots.
type ReceiveLotRequest struct {
	ProductID     string `json:"prodId" binding:"required,uuid"`
	StockReceived int64  `json:"stockReceived" binding:"min=0"`
	RejectStock   int64  `json:"rejectStock" binding:"min=0"`
	ExpiryDate    string `json:"expiryDate" binding:"required"`
}

// ToInput converts the request to the engine input.
func (r ReceiveLotRequest) ToInput() (ledger.ReceiveLotInput, error) {
	prodID, err := id.Parse(r.ProductID)
	if err != nil {
		return ledger.ReceiveLotInput{}, apperror.NewValidation("invalid product id").WithDetail("field", "prodId")
	}
	expiry, err := parseDate("expiryDate", r.ExpiryDate)
	if err != nil {
		return ledger.ReceiveLotInput{}, err
	}
	return ledger.ReceiveLotInput{
		ProductID:     prodID,
		StockReceived: r.StockReceived,
		RejectStock:   r.RejectStock,
		ExpiryDate:    expiry,
	}, nil
}

// UpdateLotRequest is the body of PUT /lots/:id: the corrected receiving record.
type UpdateLotRequest struct {
	StockReceived int64  `json:"stockReceived" binding:"min=0"`
	RejectStock   int64  `json:"rejectStock" binding:"min=0"`
	ExpiryDate    string `json:"expiryDate" binding:"required"`
}

// ToCorrection converts the request to the engine input.
func (r UpdateLotRequest) ToCorrection() (ledger.LotCorrection, error) {
	expiry, err := parseDate("expiryDate", r.ExpiryDate)
	if err != nil {
		return ledger.LotCorrection{}, err
	}
	return ledger.LotCorrection{
		StockReceived: r.StockReceived,
		RejectStock:   r.RejectStock,
		ExpiryDate:    expiry,
	}, nil
}

// DiscardRequest is the body of POST /lots/:id/discard.
// Amount range is checked by the engine so that 0 and negatives report
// INVALID_AMOUNT like an over-discard does.
type DiscardRequest struct {
	Amount *int64 `json:"amount" binding:"required"`
}
