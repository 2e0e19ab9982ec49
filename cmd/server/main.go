// Package main is the entry point for the retailops API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	v1 "retailops/internal/infrastructure/http/v1"
	"retailops/internal/infrastructure/metrics"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting retailops server",
		"env", cfg.App.Env,
		"storage", cfg.DB.Driver,
		"counter", cfg.Counter.Backend,
		"locks", cfg.Locks.Enabled,
		"idempotency", cfg.Idem.Enabled,
	)

	m := metrics.New(cfg.App.Name)

	app, err := build(ctx, cfg, m)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer app.Close()

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		Metrics:      m,
		Inventory:    app.Engine,
		Purchasing:   app.Purchasing,
		Sales:        app.Sales,
		Billing:      app.Billing,
		Idempotency:  app.Idempotency,
		HealthChecks: app.HealthChecks,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}
