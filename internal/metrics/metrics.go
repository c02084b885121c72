// Package metrics holds the Prometheus collectors for the ledger service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendly_turns_total",
			Help: "Conversation turns handled, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendly_translations_total",
			Help: "Translator calls by result",
		},
		[]string{"result"},
	)

	translationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spendly_translation_duration_seconds",
			Help:    "Translator call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendly_ledger_mutations_total",
			Help: "Ledger mutations applied, by operation and status",
		},
		[]string{"op", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spendly_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spendly_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	initOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			turnsTotal,
			translationsTotal,
			translationDuration,
			mutationsTotal,
			httpRequestsTotal,
			httpRequestDuration,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordTurn(kind, outcome string) {
	turnsTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordTranslation(result string, d time.Duration) {
	translationsTotal.WithLabelValues(result).Inc()
	translationDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordMutation counts one ledger operation; status is "ok" or "error".
func RecordMutation(op, status string) {
	mutationsTotal.WithLabelValues(op, status).Inc()
}

func RecordHTTPRequest(method, path, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
