// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockledger/internal/core/tenant"
	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/catalog/item"
	"stockledger/internal/domain/catalog/location"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the shared database connection pool
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// TokenService validates tenant tokens; nil disables token resolution
	// and tenants are addressed by header only
	TokenService *auth.TokenService

	// IdempotencyTTL is how long completed idempotency records are kept
	IdempotencyTTL time.Duration

	// LedgerConfig tunes the ledger write path
	LedgerConfig ledger.Config
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	txManager := postgres.NewTxManager(cfg.Pool)

	// Repositories
	itemRepo := catalog_repo.NewItemRepo(txManager)
	locationRepo := catalog_repo.NewLocationRepo(txManager)
	ledgerRepo := ledger_repo.NewLedgerRepo(txManager)

	// Services
	itemService := item.NewService(itemRepo)
	locationService := location.NewService(locationRepo)
	lookup := catalog.NewLookup(itemService, locationService)
	ledgerService := ledger.NewService(ledgerRepo, lookup, txManager, cfg.LedgerConfig)

	registry := tenant.NewPostgresRegistry(cfg.Pool.Unwrap())

	// The retry window is short: keys exist to absorb client retries of a
	// request in flight, not to archive responses.
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	idempotencyStore, err := postgres.NewIdempotencyStore(txManager, ttl)
	if err != nil {
		return nil, err
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())

	// Health and metrics endpoints (no tenant required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	baseHandler := handlers.NewBaseHandler()
	itemHandler := handlers.NewItemHandler(baseHandler, itemService)
	locationHandler := handlers.NewLocationHandler(baseHandler, locationService)
	stockHandler := handlers.NewStockHandler(baseHandler, ledgerService)

	// API v1: every route below requires a resolved tenant scope.
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.TenantScope(registry, cfg.TokenService))
	apiV1.Use(middleware.Idempotency(idempotencyStore))

	inventory := apiV1.Group("/inventory")
	{
		items := inventory.Group("/items")
		{
			items.POST("", itemHandler.Create)
			items.GET("", itemHandler.List)
			items.GET("/:id", itemHandler.Get)
			items.PUT("/:id", itemHandler.Update)
			items.DELETE("/:id", itemHandler.Delete)
			items.GET("/:id/stock", stockHandler.GetItemStock)
		}

		locations := inventory.Group("/locations")
		{
			locations.POST("", locationHandler.Create)
			locations.GET("", locationHandler.List)
			locations.GET("/:id", locationHandler.Get)
			locations.PUT("/:id", locationHandler.Update)
			locations.DELETE("/:id", locationHandler.Delete)
		}

		stock := inventory.Group("/stock")
		{
			stock.POST("/receipt", stockHandler.Receipt)
			stock.POST("/issue", stockHandler.Issue)
			stock.POST("/transfer", stockHandler.Transfer)
			stock.GET("/movements", stockHandler.GetMovements)
			stock.POST("/reconcile", stockHandler.Reconcile)
		}
	}

	return router, nil
}
