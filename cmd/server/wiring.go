package main

import (
	"context"
	"fmt"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"retailops/internal/core/idempotency"
	corelock "retailops/internal/core/lock"
	corenumerator "retailops/internal/core/numerator"
	"retailops/internal/core/tx"
	"retailops/internal/domain/billing"
	"retailops/internal/domain/inventory"
	"retailops/internal/domain/purchasing"
	"retailops/internal/domain/sales"
	"retailops/internal/infrastructure/http/v1/handlers"
	"retailops/internal/infrastructure/lock"
	"retailops/internal/infrastructure/metrics"
	"retailops/internal/infrastructure/numerator"
	"retailops/internal/infrastructure/storage/memory"
	"retailops/internal/infrastructure/storage/postgres"
	"retailops/internal/infrastructure/storage/postgres/document_repo"
	"retailops/internal/infrastructure/storage/postgres/inventory_repo"
	"retailops/pkg/config"
	"retailops/pkg/logger"
)

// application holds the wired services and the resources to release.
type application struct {
	Engine     *inventory.Engine
	Purchasing *purchasing.Service
	Sales      *sales.Service
	Billing    *billing.Service

	// Idempotency is nil when IDEMPOTENCY_ENABLED is off.
	Idempotency idempotency.Store

	HealthChecks map[string]handlers.Pinger

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// storage is the persistence selected by STORAGE_DRIVER.
type storage struct {
	txm        tx.Manager
	inventory  inventory.Repository
	orders     purchasing.Repository
	sales      sales.Repository
	billing    billing.Repository
	keys       idempotency.Store
	postgresDB numerator.QuerierSource

	// set by the memory driver only
	counter  corenumerator.Counter
	reserver corenumerator.RangeReserver
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func build(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*application, error) {
	app := &application{HealthChecks: make(map[string]handlers.Pinger)}

	st, err := openStorage(ctx, cfg, m, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Counter.Backend == config.CounterRedis || cfg.Locks.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.closers = append(app.closers, func() { _ = rdb.Close() })
		app.HealthChecks["redis"] = pingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	counter, reserver, err := selectCounter(cfg, st, rdb)
	if err != nil {
		app.Close()
		return nil, err
	}

	var locker corelock.Locker = corelock.Noop{}
	if cfg.Locks.Enabled {
		locker = lock.NewRedis(redislock.New(rdb), cfg.Locks.TTL)
	}

	app.Engine = inventory.NewEngine(st.inventory, st.txm, inventory.WithObserver(m))

	poOpts := []purchasing.Option{
		purchasing.WithReceiptNumbering(numerator.NewCached(reserver, cfg.Counter.GoodsReceiptSpan)),
	}
	if cfg.Docs.PurchaseOrderAutoNumber {
		poOpts = append(poOpts, purchasing.WithReferenceNumbering(counter))
	}
	app.Purchasing = purchasing.NewService(st.orders, app.Engine, st.txm, poOpts...)

	app.Sales = sales.NewService(st.sales, app.Engine, st.txm,
		sales.WithNumbering(counter),
		sales.WithLocker(locker),
	)
	app.Billing = billing.NewService(st.billing, st.sales, counter, st.txm)
	if cfg.Idem.Enabled {
		app.Idempotency = st.keys
	}

	return app, nil
}

func openStorage(ctx context.Context, cfg *config.Config, m *metrics.Metrics, app *application) (*storage, error) {
	if cfg.DB.Driver == config.StorageMemory {
		logger.Warn(ctx, "using in-memory storage; data is lost on restart")
		store := memory.New()
		return &storage{
			txm:       store,
			inventory: store.Inventory(),
			orders:    store.PurchaseOrders(),
			sales:     store.Sales(),
			billing:   store.Billing(),
			keys:      memory.NewIdempotencyStore(cfg.Idem.TTL),
			counter:   store,
			reserver:  store,
		}, nil
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.DatabaseURL)
	poolCfg.ApplicationName = cfg.App.Name
	poolCfg.MaxConns = cfg.DB.MaxConns
	poolCfg.MinConns = cfg.DB.MinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	app.closers = append(app.closers, pool.Close)
	app.HealthChecks["database"] = pool
	m.RegisterPool("main", func() metrics.PoolUsage {
		acquired, idle, total, limit := pool.Usage()
		return metrics.PoolUsage{Acquired: acquired, Idle: idle, Total: total, Max: limit}
	})

	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info(ctx, "database schema applied")
	}

	txOpts := postgres.DefaultTxOptions()
	txOpts.MaxRetries = cfg.Tx.MaxRetries
	txOpts.StatementTimeout = cfg.Tx.StatementTimeout
	txm := postgres.NewTxManager(pool,
		postgres.WithTxOptions(txOpts),
		postgres.WithRetryHook(m.TxRetried),
	)

	return &storage{
		txm:        txm,
		inventory:  inventory_repo.New(txm),
		orders:     document_repo.NewPurchaseOrderRepo(txm),
		sales:      document_repo.NewSaleRepo(txm),
		billing:    document_repo.NewInvoiceRepo(txm),
		keys:       postgres.NewIdempotencyStore(txm, cfg.Idem.TTL),
		postgresDB: txm,
	}, nil
}

// selectCounter returns the document counter and the range reserver used
// for goods receipt numbers.
func selectCounter(cfg *config.Config, st *storage, rdb *redis.Client) (corenumerator.Counter, corenumerator.RangeReserver, error) {
	breakerCfg := numerator.BreakerConfig{
		Name:                "counter-" + cfg.Counter.Backend,
		ConsecutiveFailures: cfg.Counter.BreakerFailures,
		OpenFor:             cfg.Counter.BreakerOpenFor,
	}

	switch cfg.Counter.Backend {
	case config.CounterMemory:
		if st.counter == nil {
			return nil, nil, fmt.Errorf("COUNTER_BACKEND=memory requires STORAGE_DRIVER=memory")
		}
		return st.counter, st.reserver, nil
	case config.CounterPostgres:
		if st.postgresDB == nil {
			return nil, nil, fmt.Errorf("COUNTER_BACKEND=postgres requires STORAGE_DRIVER=postgres")
		}
		b := numerator.NewBreaker(numerator.NewPostgres(st.postgresDB), breakerCfg)
		return b, b, nil
	case config.CounterRedis:
		b := numerator.NewBreaker(numerator.NewRedis(rdb), breakerCfg)
		return b, b, nil
	}
	return nil, nil, fmt.Errorf("unknown counter backend %q", cfg.Counter.Backend)
}
