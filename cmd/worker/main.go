// Package main is the entry point for the retailops background worker.
// It periodically checks every stock snapshot against its ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"retailops/internal/domain/inventory"
	"retailops/internal/infrastructure/metrics"
	"retailops/internal/infrastructure/storage/postgres"
	"retailops/internal/infrastructure/storage/postgres/inventory_repo"
	"retailops/pkg/config"
	"retailops/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
		Service:     cfg.App.Name,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	if cfg.DB.Driver != config.StoragePostgres {
		log.Fatalw("worker requires postgres storage", "storage", cfg.DB.Driver)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting retailops reconciliation worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.DatabaseURL)
	poolCfg.ApplicationName = cfg.App.Name + "-worker"
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	m := metrics.New(cfg.App.Name + "_worker")
	m.RegisterPool("main", func() metrics.PoolUsage {
		acquired, idle, total, limit := pool.Usage()
		return metrics.PoolUsage{Acquired: acquired, Idle: idle, Total: total, Max: limit}
	})
	txm := postgres.NewTxManager(pool, postgres.WithRetryHook(m.TxRetried))
	engine := inventory.NewEngine(inventory_repo.New(txm), txm, inventory.WithObserver(m))

	worker := NewReconcileWorker(engine, pool, cfg.Worker, log)
	if cfg.Idem.Enabled {
		worker.WithKeyCleaner(postgres.NewIdempotencyStore(txm, cfg.Idem.TTL))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	var metricsServer *http.Server
	if cfg.Worker.MetricsAddr != "" {
		metricsServer = newMetricsServer(cfg.Worker.MetricsAddr, m)
		go func() {
			log.Infow("metrics listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	if metricsServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Errorw("metrics server forced to shutdown", "error", err)
		}
		cancelShutdown()
	}

	wg.Wait()
	log.Info("worker stopped")
}

// newMetricsServer serves the worker registry on /metrics.
func newMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Reconciler is the part of the inventory engine the worker drives.
type Reconciler interface {
	Reconcile(ctx context.Context, batchSize int) (*inventory.ReconcileReport, error)
}

// KeyCleaner drops expired idempotency keys.
type KeyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// ReconcileWorker runs stock reconciliation on a fixed interval and, when a
// KeyCleaner is set, purges expired idempotency keys.
type ReconcileWorker struct {
	engine Reconciler
	keys   KeyCleaner
	pool   *postgres.Pool
	cfg    config.WorkerConfig
	log    *logger.Logger
}

func NewReconcileWorker(engine Reconciler, pool *postgres.Pool, cfg config.WorkerConfig, log *logger.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		engine: engine,
		pool:   pool,
		cfg:    cfg,
		log:    log.WithComponent("reconcile"),
	}
}

// WithKeyCleaner enables the idempotency key purge.
func (w *ReconcileWorker) WithKeyCleaner(keys KeyCleaner) *ReconcileWorker {
	w.keys = keys
	return w
}

// Run blocks until ctx is canceled. The first pass starts immediately.
func (w *ReconcileWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReconcileInterval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Minute)
	defer statsTicker.Stop()

	// a nil channel never fires, so the purge stays off without a cleaner
	var cleanup <-chan time.Time
	if w.keys != nil && w.cfg.KeyCleanupInterval > 0 {
		cleanupTicker := time.NewTicker(w.cfg.KeyCleanupInterval)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	w.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcile(ctx)
		case <-cleanup:
			w.cleanupKeys(ctx)
		case <-statsTicker.C:
			if w.pool != nil {
				w.pool.LogStats(ctx)
			}
		}
	}
}

func (w *ReconcileWorker) cleanupKeys(ctx context.Context) {
	n, err := w.keys.CleanupExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Errorw("idempotency key cleanup failed", "error", err)
		}
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}

func (w *ReconcileWorker) reconcile(ctx context.Context) {
	started := time.Now()

	report, err := w.engine.Reconcile(ctx, w.cfg.ReconcileBatch)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Errorw("reconciliation failed", "error", err)
		}
		return
	}

	if len(report.Diverged) > 0 {
		w.log.Warnw("reconciliation found divergent snapshots",
			"checked", report.Checked,
			"diverged", len(report.Diverged),
			"duration", time.Since(started),
		)
		return
	}
	w.log.Infow("reconciliation complete", "checked", report.Checked, "duration", time.Since(started))
}
