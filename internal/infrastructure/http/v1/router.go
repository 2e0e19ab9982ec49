// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"retailops/internal/core/idempotency"
	"retailops/internal/domain/billing"
	"retailops/internal/domain/inventory"
	"retailops/internal/domain/purchasing"
	"retailops/internal/domain/sales"
	"retailops/internal/infrastructure/http/v1/handlers"
	"retailops/internal/infrastructure/http/v1/middleware"
	"retailops/internal/infrastructure/metrics"
	"retailops/pkg/logger"
)

// RouterConfig holds the services the router exposes.
type RouterConfig struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	Inventory  *inventory.Engine
	Purchasing *purchasing.Service
	Sales      *sales.Service
	Billing    *billing.Service

	// Idempotency backs X-Idempotency-Key on receive and payment routes.
	// Nil disables key handling.
	Idempotency idempotency.Store

	// HealthChecks run on /health/ready
	HealthChecks map[string]handlers.Pinger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// order matters: recovery must wrap everything, errors render last
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	base := handlers.NewBaseHandler()

	keyed := func(c *gin.Context) { c.Next() }
	if cfg.Idempotency != nil {
		keyed = middleware.Idempotency(cfg.Idempotency)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Tenant())
	{
		po := handlers.NewPurchaseOrderHandler(base, cfg.Purchasing)
		orders := v1.Group("/purchase-orders")
		orders.POST("", po.Create)
		orders.GET("/:id", po.Get)
		orders.GET("/:id/receipts", po.Receipts)
		orders.POST("/:id/receive", keyed, po.Receive)
		orders.POST("/:id/cancel", po.Cancel)

		sale := handlers.NewSaleHandler(base, cfg.Sales, cfg.Billing)
		salesGroup := v1.Group("/sales")
		salesGroup.POST("", sale.Create)
		salesGroup.GET("/:id", sale.Get)
		salesGroup.POST("/:id/confirm", sale.Confirm)
		salesGroup.POST("/:id/deliver", sale.Deliver)
		salesGroup.POST("/:id/cancel", sale.Cancel)
		salesGroup.POST("/:id/invoice", sale.Invoice)

		bill := handlers.NewBillingHandler(base, cfg.Billing)
		v1.GET("/invoices", bill.ListInvoices)
		v1.GET("/invoices/:id", bill.GetInvoice)
		v1.GET("/invoices/:id/payments", bill.ListPayments)
		v1.POST("/payments", keyed, bill.RecordPayment)

		inv := handlers.NewInventoryHandler(base, cfg.Inventory)
		stock := v1.Group("/inventory")
		stock.GET("/:productId", inv.Snapshot)
		stock.GET("/:productId/ledger", inv.Ledger)
		stock.GET("/:productId/verify", inv.Verify)
	}

	return router
}
