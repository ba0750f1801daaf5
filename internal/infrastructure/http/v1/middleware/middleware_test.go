package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/infrastructure/storage/memory"
	"stockledger/pkg/logger"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Trace(logger.NewNop()), Logger(logger.NewNop()), ErrorHandler(), Recovery())
	return r
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestRecovery_RendersInternalError(t *testing.T) {
	r := newEngine()
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := errorBody(t, w)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "kaboom")
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
}

func TestErrorHandler_UnknownErrorHidesCause(t *testing.T) {
	r := newEngine()
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("connection refused by 10.0.0.7"))
		c.Abort()
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.7")
	details := errorBody(t, w)["details"].(map[string]any)
	assert.NotEmpty(t, details["request_id"])
}

func TestTrace_GeneratesIDs(t *testing.T) {
	r := newEngine()
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}

func TestIdempotency_BodyTooLarge(t *testing.T) {
	r := newEngine()
	r.POST("/things", Idempotency(memory.NewIdempotencyStore(time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	big := bytes.Repeat([]byte("a"), maxIdempotencyBodyBytes+10)
	req := httptest.NewRequest(http.MethodPost, "/things", bytes.NewReader(big))
	req.Header.Set(HeaderIdempotencyKey, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	r := newEngine()
	calls := 0
	r.POST("/things", Idempotency(memory.NewIdempotencyStore(time.Minute)), func(c *gin.Context) {
		calls++
		if calls == 1 {
			panic("store went away")
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/things", strings.NewReader(`{}`))
		req.Header.Set(HeaderIdempotencyKey, "p-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusInternalServerError, send().Code)
	w := send()
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_SameKeyDifferentPathMismatches(t *testing.T) {
	r := newEngine()
	calls := 0
	r.POST("/lots/:id/discard", Idempotency(memory.NewIdempotencyStore(time.Minute)), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"lot": c.Param("id")})
	})

	send := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"amount":1}`))
		req.Header.Set(HeaderIdempotencyKey, "same")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("/lots/a/discard").Code)
	w := send("/lots/b/discard")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeIdempotency, errorBody(t, w)["code"])
	assert.Equal(t, 1, calls)
}
