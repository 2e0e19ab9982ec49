package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, CounterPostgres, cfg.Counter.Backend)
	assert.Equal(t, 3, cfg.Tx.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Tx.StatementTimeout)
	assert.True(t, cfg.Docs.PurchaseOrderAutoNumber)
	assert.Equal(t, 15*time.Minute, cfg.Worker.ReconcileInterval)
	assert.Equal(t, 200, cfg.Worker.ReconcileBatch)
	assert.Equal(t, ":9091", cfg.Worker.MetricsAddr)
	assert.True(t, cfg.Idem.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Idem.TTL)
	assert.Equal(t, time.Hour, cfg.Worker.KeyCleanupInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("TX_MAX_RETRIES", "5")
	t.Setenv("LOCKS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.DB.Driver)
	assert.Equal(t, CounterMemory, cfg.Counter.Backend)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr())
	assert.Equal(t, 5, cfg.Tx.MaxRetries)
	assert.True(t, cfg.Locks.Enabled)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsZeroReconcileInterval(t *testing.T) {
	t.Setenv("RECONCILE_INTERVAL", "0s")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_WorkerMetricsAddr(t *testing.T) {
	t.Setenv("WORKER_METRICS_ADDR", "127.0.0.1:9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.Worker.MetricsAddr)
}

func TestLoad_RejectsZeroIdempotencyTTL(t *testing.T) {
	t.Setenv("IDEMPOTENCY_TTL", "0s")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("IDEMPOTENCY_ENABLED", "false")
	_, err = Load()
	assert.NoError(t, err)
}
