// Package idempotency defines the storage contract behind the
// X-Idempotency-Key request header.
package idempotency

import (
	"context"
	"net/http"
)

// Status is the state of an idempotent operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Replay is a cached HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store remembers the outcome of keyed requests.
type Store interface {
	// AcquireKey claims key for operation.
	// Returns (nil, nil) when the caller should execute the request,
	// a Replay when the operation already finished, or an error when the key
	// is in flight elsewhere or was used for a different request.
	AcquireKey(ctx context.Context, key, operation, requestHash string) (*Replay, error)

	// CompleteKey stores a successful response.
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error

	// FailKey stores an error response.
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error

	// ReleaseKey forgets a pending key so a retry runs the request again.
	// Used when nothing was applied and the failure may be transient.
	ReleaseKey(ctx context.Context, key string) error
}

// NormalizeReplay fills defaults missing from older records.
func NormalizeReplay(r *Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" && r.StatusCode != http.StatusNoContent {
		r.ContentType = "application/json"
	}
	return r
}
