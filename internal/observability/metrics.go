package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus collectors for requests, ticket operations,
// stock movements and alerts. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
	operations      *prometheus.CounterVec
	retries         *prometheus.CounterVec
	stockMovements  *prometheus.CounterVec
	stockQuantity   *prometheus.CounterVec
	alertItems      *prometheus.GaugeVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics(serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "HTTP requests by route, method and status.",
			ConstLabels: constLabels,
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_errors_total",
			Help:        "HTTP error responses by error code.",
			ConstLabels: constLabels,
		}, []string{"path", "method", "code"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "maintenance_operations_total",
			Help:        "Ticket and inventory operations by outcome kind.",
			ConstLabels: constLabels,
		}, []string{"operation", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "maintenance_conflict_retries_total",
			Help:        "Operations retried after a concurrency conflict.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		stockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "maintenance_stock_movements_total",
			Help:        "Ledger entries written by type.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		stockQuantity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "maintenance_stock_quantity_total",
			Help:        "Absolute quantity moved through the ledger by type.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		alertItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "maintenance_stock_alert_items",
			Help:        "Materials in each alert set at the last evaluation.",
			ConstLabels: constLabels,
		}, []string{"alert"}),
	}
	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.errorCount,
		m.operations,
		m.retries,
		m.stockMovements,
		m.stockQuantity,
		m.alertItems,
		prometheus.NewGoCollector(),
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordOperation counts one orchestrator call. outcome is "ok" or an error kind.
func (m *Metrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// RecordRetry counts a conflict retry.
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// RecordStockMovement counts a committed ledger entry.
func (m *Metrics) RecordStockMovement(kind string, quantity float64) {
	if m == nil {
		return
	}
	m.stockMovements.WithLabelValues(kind).Inc()
	m.stockQuantity.WithLabelValues(kind).Add(quantity)
}

// SetAlertCounts publishes the size of each alert set.
func (m *Metrics) SetAlertCounts(counts map[string]int) {
	if m == nil {
		return
	}
	for alert, n := range counts {
		m.alertItems.WithLabelValues(alert).Set(float64(n))
	}
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
