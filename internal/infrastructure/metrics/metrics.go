// Package metrics exposes Prometheus metrics for HTTP traffic, stock
// postings and transaction retries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"retailops/internal/domain/inventory"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	StockPostings *prometheus.CounterVec
	StockQuantity *prometheus.CounterVec
	StockRejected prometheus.Counter

	TxRetries prometheus.Counter

	namespace string
}

// PoolUsage is a point-in-time view of a connection pool.
type PoolUsage struct {
	Acquired int32
	Idle     int32
	Total    int32
	Max      int32
}

var _ inventory.Observer = (*Metrics)(nil)

// New creates and registers all collectors under namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry, namespace: namespace}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	m.StockPostings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_postings_total",
			Help:      "Ledger entries written, by source type",
		},
		[]string{"source_type"},
	)

	m.StockQuantity = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_posted_units_total",
			Help:      "Absolute units moved by postings, by source type",
		},
		[]string{"source_type"},
	)

	m.StockRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_insufficient_total",
			Help:      "Sale postings rejected for insufficient stock",
		},
	)

	m.TxRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_retries_total",
			Help:      "Transactions re-run after a serialization failure or deadlock",
		},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StockPostings,
		m.StockQuantity,
		m.StockRejected,
		m.TxRetries,
	)
	return m
}

// Posted implements inventory.Observer.
func (m *Metrics) Posted(source inventory.SourceType, quantity int64) {
	if quantity < 0 {
		quantity = -quantity
	}
	m.StockPostings.WithLabelValues(string(source)).Inc()
	m.StockQuantity.WithLabelValues(string(source)).Add(float64(quantity))
}

// InsufficientStock implements inventory.Observer.
func (m *Metrics) InsufficientStock() {
	m.StockRejected.Inc()
}

// TxRetried is the postgres.WithRetryHook callback.
func (m *Metrics) TxRetried() {
	m.TxRetries.Inc()
}

// RegisterPool exports connection pool gauges read from usage on scrape.
func (m *Metrics) RegisterPool(name string, usage func() PoolUsage) {
	gauge := func(metric, help string, pick func(PoolUsage) int32) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   "db_pool",
			Name:        metric,
			Help:        help,
			ConstLabels: prometheus.Labels{"pool": name},
		}, func() float64 { return float64(pick(usage())) })
	}
	m.registry.MustRegister(
		gauge("acquired_conns", "Connections currently in use", func(u PoolUsage) int32 { return u.Acquired }),
		gauge("idle_conns", "Idle connections", func(u PoolUsage) int32 { return u.Idle }),
		gauge("total_conns", "Open connections", func(u PoolUsage) int32 { return u.Total }),
		gauge("max_conns", "Configured connection limit", func(u PoolUsage) int32 { return u.Max }),
	)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
