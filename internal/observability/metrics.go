// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing, so components take it optionally.
type Metrics struct {
	// Ingest metrics
	EventsIngested *prometheus.CounterVec
	IngestErrors   *prometheus.CounterVec
	IngestCursor   *prometheus.GaugeVec

	// Query metrics
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "soroscan"
	}

	return &Metrics{
		EventsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of contract events stored",
		}, []string{"contract_id"}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Total number of ingest failures by stage",
		}, []string{"stage"}),
		IngestCursor: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "ledger_cursor",
			Help:      "Highest ledger sequence ingested per contract",
		}, []string{"contract_id"}),
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of query requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of the last successful poll cycle",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEventsIngested counts stored events for a contract.
func (m *Metrics) RecordEventsIngested(contractID string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsIngested.WithLabelValues(contractID).Add(float64(n))
}

// RecordIngestError counts one ingest failure at the given stage.
func (m *Metrics) RecordIngestError(stage string) {
	if m == nil {
		return
	}
	m.IngestErrors.WithLabelValues(stage).Inc()
}

// RecordIngestCursor publishes the ledger cursor for a contract.
func (m *Metrics) RecordIngestCursor(contractID string, ledger int64) {
	if m == nil {
		return
	}
	m.IngestCursor.WithLabelValues(contractID).Set(float64(ledger))
}

// RecordPollSuccess marks the completion of a poll cycle.
func (m *Metrics) RecordPollSuccess() {
	if m == nil {
		return
	}
	m.LastSuccessfulPoll.SetToCurrentTime()
}

// RecordQuery counts one query request and its handling duration.
func (m *Metrics) RecordQuery(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueryRequests.WithLabelValues(operation, outcome).Inc()
	m.QueryDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
