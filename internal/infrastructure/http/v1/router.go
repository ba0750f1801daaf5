package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockledger/internal/core/idempotency"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/broadcast"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/pkg/logger"
)

// RouterConfig holds the router's dependencies.
type RouterConfig struct {
	Engine *ledger.Engine
	Hub    *broadcast.Hub

	// Logger for request logging
	Logger *logger.Logger

	// Idempotency enables X-Idempotency-Key handling on mutating routes when set.
	Idempotency idempotency.Store

	Health handlers.HealthConfig

	// Gatherer backs /metrics. Defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer

	// EventWriteTimeout bounds a single websocket write to a viewer.
	EventWriteTimeout time.Duration

	Development bool
}

// NewRouter creates and configures the gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()

	// ErrorHandler sits outside Recovery so a recovered panic is rendered too.
	router.Use(middleware.Trace(cfg.Logger))
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.Health)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	var mutating []gin.HandlerFunc
	if cfg.Idempotency != nil {
		mutating = append(mutating, middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	productHandler := handlers.NewProductHandler(base, cfg.Engine)
	lotHandler := handlers.NewLotHandler(base, cfg.Engine)
	eventsHandler := handlers.NewEventsHandler(base, cfg.Hub, cfg.EventWriteTimeout)

	api := router.Group("/api/v1")
	{
		RegisterCRUDRoutes(api.Group("/products"), productHandler, mutating...)

		lots := api.Group("/lots")
		RegisterCRUDRoutes(lots, lotHandler, mutating...)
		lots.GET("/:id/discards", lotHandler.Discards)
		lots.POST("/:id/discard", append(append([]gin.HandlerFunc{}, mutating...), lotHandler.Discard)...)

		api.GET("/events", eventsHandler.Stream)
	}

	return router
}

// NewHandler wraps the router with response compression. Full-state reads
// are the large responses; websocket upgrades bypass the gzip writer.
func NewHandler(cfg RouterConfig) http.Handler {
	router := NewRouter(cfg)
	gz := gzhttp.GzipHandler(router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			router.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}
