package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veckopeng_http_requests_total",
			Help: "HTTP requests by method and status code.",
		},
		[]string{"method", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "veckopeng_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	// ApprovalsTotal counts committed approval transactions, the only
	// operation that credits a balance.
	ApprovalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veckopeng_approvals_total",
		Help: "Task approvals committed.",
	})
	// ApprovalConflictsTotal counts approvals that lost a race and were
	// rejected without crediting.
	ApprovalConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veckopeng_approval_conflicts_total",
		Help: "Task approvals rejected as conflicts.",
	})
)

// Metrics returns middleware that records request counts and latencies.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			requestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
			requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
