package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "apiregistry"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"component", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component", "method", "path", "status"},
	)
	seedItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "seed",
			Name:      "items_total",
			Help:      "Registry items submitted by the seeder, by outcome.",
		},
		[]string{"table", "outcome"},
	)
	seedBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "seed",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one batch write against a registry table.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"table"},
	)
	policiesIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authorizer",
			Name:      "policies_total",
			Help:      "Access policies issued, by effect.",
		},
		[]string{"effect"},
	)
	authorizeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authorizer",
			Name:      "errors_total",
			Help:      "Authorization requests that produced no policy.",
		},
		[]string{"reason"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, seedItems, seedBatchDuration, policiesIssued, authorizeErrors)
	})
}

func RecordHTTPRequest(component, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(component, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(component, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSeedBatch(table string, succeeded, failed int, duration time.Duration) {
	RegisterMetrics()
	seedItems.WithLabelValues(table, "written").Add(float64(succeeded))
	seedItems.WithLabelValues(table, "failed").Add(float64(failed))
	seedBatchDuration.WithLabelValues(table).Observe(duration.Seconds())
}

func RecordPolicyIssued(effect string) {
	RegisterMetrics()
	policiesIssued.WithLabelValues(effect).Inc()
}

func RecordAuthorizeError(reason string) {
	RegisterMetrics()
	authorizeErrors.WithLabelValues(reason).Inc()
}
