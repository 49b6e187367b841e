// Package metrics holds the Prometheus collectors for the ledger server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slnfs_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slnfs_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ReportsExported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slnfs_reports_exported_total",
			Help: "Report exports by kind, format and outcome.",
		},
		[]string{"kind", "format", "outcome"},
	)

	SalesSheetsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slnfs_sales_sheets_saved_total",
			Help: "Daily sales sheet saves by outcome.",
		},
		[]string{"outcome"},
	)

	SalesRowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slnfs_sales_rows_written_total",
			Help: "Sales reading rows written by sheet saves.",
		},
	)

	BackupsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slnfs_backups_total",
			Help: "Backups by outcome.",
		},
		[]string{"outcome"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency. The route label is the chi
// pattern when available so ids don't explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
