package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studioline_operations_total",
		Help: "Workflow operations by name and outcome kind.",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studioline_operation_duration_seconds",
		Help:    "Wall time of workflow operations including store retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	storeRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studioline_store_retries_total",
		Help: "Store calls retried after a busy or locked database.",
	}, []string{"operation"})

	noticesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studioline_notices_sent_total",
		Help: "Bulk notices handed to the notifier.",
	})

	noticeRecipientsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studioline_notice_recipients_total",
		Help: "Recipients addressed by bulk notices.",
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studioline_http_requests_total",
		Help: "HTTP API requests by method and status code.",
	}, []string{"method", "code"})
)

// ObserveOperation records one finished operation. outcome is "ok" or an error kind.
func ObserveOperation(operation, outcome string, elapsed time.Duration) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func ObserveRetry(operation string) {
	storeRetriesTotal.WithLabelValues(operation).Inc()
}

func ObserveNotice(recipients int) {
	noticesSentTotal.Inc()
	noticeRecipientsTotal.Add(float64(recipients))
}

func ObserveHTTP(method, code string) {
	httpRequestsTotal.WithLabelValues(method, code).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
