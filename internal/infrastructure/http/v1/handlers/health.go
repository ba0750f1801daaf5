package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger checks the ledger store connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	store     Pinger
	storeKind string
	version   string
	stats     func() any
	listeners func() int
}

// HealthConfig configures a HealthHandler. Store may be nil for the
// in-memory ledger store, which is always ready.
type HealthConfig struct {
	Store       Pinger
	StoreKind   string
	Version     string
	PoolStats   func() any
	Subscribers func() int
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cfg HealthConfig) *HealthHandler {
	return &HealthHandler{
		store:     cfg.Store,
		storeKind: cfg.StoreKind,
		version:   cfg.Version,
		stats:     cfg.PoolStats,
		listeners: cfg.Subscribers,
	}
}

// Live handles the liveness check.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles the readiness check.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "error",
				"checks": map[string]string{
					"store": "unhealthy: " + err.Error(),
				},
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"store": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":     "stockledger",
		"version": h.version,
		"store":   h.storeKind,
	}
	if h.stats != nil {
		info["database"] = h.stats()
	}
	if h.listeners != nil {
		info["subscribers"] = h.listeners()
	}
	c.JSON(http.StatusOK, info)
}
