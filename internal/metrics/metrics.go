package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviequery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviequery_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	// QueriesTotal counts pipeline runs by intent and outcome (ok, empty, error).
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviequery_queries_total",
			Help: "Total number of natural language queries",
		},
		[]string{"intent", "outcome"},
	)
)

// Outcome labels a finished query
func Outcome(failed, empty bool) string {
	switch {
	case failed:
		return "error"
	case empty:
		return "empty"
	default:
		return "ok"
	}
}
