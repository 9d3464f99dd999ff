// Package metrics exposes prometheus instrumentation for reconciliation
// calls. Collectors are registered on the default registry at init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "recon"

	lookupQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "queries_total",
			Help:      "Lookup queries issued against the remote store",
		},
		[]string{"type"},
	)

	lookupRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "rows_total",
			Help:      "Remote rows returned by lookup queries",
		},
		[]string{"type"},
	)

	bulkCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "calls_total",
			Help:      "Bulk mutation calls by operation and outcome",
		},
		[]string{"type", "operation", "outcome"},
	)

	bulkRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "records_total",
			Help:      "Records submitted in bulk calls by per-record result",
		},
		[]string{"type", "operation", "result"},
	)

	bulkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bulk",
			Name:      "duration_seconds",
			Help:      "Duration of bulk mutation calls in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"type", "operation"},
	)

	deployChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deploy",
			Name:      "changes_total",
			Help:      "Changes handled by Deploy, split into applied and failed",
		},
		[]string{"type", "action", "result"},
	)

	deployDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: "deploy",
			Name:      "duration_milliseconds",
			Help:      "Time taken by one Deploy call (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.01,
			},
		},
		[]string{"type"},
	)
)

// RecordLookup counts one executed lookup query and the rows it returned.
func RecordLookup(typeName string, rows int) {
	lookupQueries.WithLabelValues(typeName).Inc()
	lookupRows.WithLabelValues(typeName).Add(float64(rows))
}

// RecordBulkCall records a bulk call. A non-nil err marks a transport
// failure; otherwise succeeded and failed count per-record outcomes.
func RecordBulkCall(typeName, op string, succeeded, failed int, err error, duration time.Duration) {
	bulkDuration.WithLabelValues(typeName, op).Observe(duration.Seconds())
	if err != nil {
		bulkCalls.WithLabelValues(typeName, op, "transport_error").Inc()
		return
	}
	bulkCalls.WithLabelValues(typeName, op, "ok").Inc()
	bulkRecords.WithLabelValues(typeName, op, "success").Add(float64(succeeded))
	bulkRecords.WithLabelValues(typeName, op, "error").Add(float64(failed))
}

// RecordChange counts one change outcome of a Deploy call.
func RecordChange(typeName, action string, applied bool) {
	result := "applied"
	if !applied {
		result = "error"
	}
	deployChanges.WithLabelValues(typeName, action, result).Inc()
}

// ObserveDeploy records the duration of a Deploy call.
func ObserveDeploy(typeName string, duration time.Duration) {
	deployDuration.WithLabelValues(typeName).Observe(float64(duration.Milliseconds()))
}

// WriteTextfile writes the current state of the default registry in the
// node-exporter textfile format, for one-shot CLI runs.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
