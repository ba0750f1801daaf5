package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/idempotency"
	"stockledger/pkg/logger"
)

// ErrorHandler renders the last handler error as {code, message, details}.
// Internal causes are logged and never exposed to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// The handler already answered.
		if c.Writer.Written() {
			return
		}

		status := http.StatusInternalServerError
		var body gin.H

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			status = appErr.HTTPStatus
			body = gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}
		} else {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			body = gin.H{
				"code":    apperror.CodeInternal,
				"message": "Internal server error",
				"details": map[string]any{
					"request_id": c.GetString(KeyRequestID),
				},
			}
		}

		failIdempotency(c, status, body)
		c.JSON(status, body)
	}
}

// failIdempotency settles the request's idempotency key, if any. Client
// errors are stored and replayed. Server errors (store failures, panics)
// applied nothing, so the key is released and a retry runs again.
// Best effort: a failure here must not change the response.
func failIdempotency(c *gin.Context, status int, body any) {
	key := c.GetString(KeyIdempotencyKey)
	if key == "" {
		return
	}
	store, ok := c.Get(KeyIdempotencyStore)
	if !ok {
		return
	}
	s, ok := store.(idempotency.Store)
	if !ok || s == nil {
		return
	}

	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		if err := s.ReleaseKey(ctx, key); err != nil {
			logger.Warn(ctx, "failed to release idempotency key", "key", key, "error", err)
		}
		return
	}
	if err := s.FailKey(ctx, key, status, "application/json", body); err != nil {
		logger.Warn(ctx, "failed to record idempotent error response", "key", key, "error", err)
	}
}
