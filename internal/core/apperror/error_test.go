package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"not found", NewNotFound("product", "x"), KindNotFound},
		{"duplicate", NewDuplicateName("product", "Bread"), KindDuplicateName},
		{"invalid amount", NewInvalidAmount("too much"), KindInvalidAmount},
		{"validation", NewValidation("name is required"), KindValidation},
		{"store", NewStoreFailure(errors.New("conn reset")), KindStoreFailure},
		{"wrapped", fmt.Errorf("discard: %w", NewInvalidAmount("too much")), KindInvalidAmount},
		{"plain", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(NewNotFound("lot", "1")))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(NewDuplicateName("product", "Bread")))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(NewInvalidAmount("x")))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(NewStoreFailure(nil)))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
}

func TestAppError_UnwrapAndDetails(t *testing.T) {
	cause := errors.New("commit failed")
	err := NewStoreFailure(cause).WithDetail("op", "ReceiveLot")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ReceiveLot", err.Details["op"])
	assert.Contains(t, err.Error(), "commit failed")
}
