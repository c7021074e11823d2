// Package telemetry provides application-level observability for APIVault.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<APV_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint returns data in the Prometheus text exposition
// format and is intended to be scraped by a Prometheus server every 15–60 seconds.
// It is NOT served by the Gin router.
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/requests/:id/execute)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Execution metrics recorded by the request runner.
//
// RequestExecutionsTotal is a CounterVec with label {outcome}, where outcome is
// the HTTP status class of the upstream response ("2xx" through "5xx") or "network_error"
// when the call never completed at the transport level.
//
// Example PromQL queries:
//   - Execution rate:            rate(request_executions_total[5m])
//   - Network failure ratio:     sum(rate(request_executions_total{outcome="network_error"}[5m])) / sum(rate(request_executions_total[5m]))
//
// RequestExecutionDuration observes the wall-clock duration of the outbound call
// only (not history persistence). Buckets extend to the 30 s execution timeout.
var (
	RequestExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_executions_total",
			Help: "Total number of outbound request executions, by outcome class.",
		},
		[]string{"outcome"},
	)

	RequestExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "request_execution_duration_seconds",
			Help:    "Wall-clock duration of outbound request executions.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool. It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// ExecutionOutcomeLabel converts an upstream status code to the label value used
// by RequestExecutionsTotal. A nil status means the call failed at transport level.
func ExecutionOutcomeLabel(statusCode *int) string {
	if statusCode == nil {
		return "network_error"
	}
	switch {
	case *statusCode >= 500:
		return "5xx"
	case *statusCode >= 400:
		return "4xx"
	case *statusCode >= 300:
		return "3xx"
	case *statusCode >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and exports them as gauges.
// The goroutine runs for the lifetime of the process.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			slog.Debug("sampled db pool stats", "open", stats.OpenConnections, "in_use", stats.InUse)
		}
	}()
}
