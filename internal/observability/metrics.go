// Package observability holds the Prometheus collectors shared by the ledger, registry, and
// aggregation engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "steplotto"

var (
	submissionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "submissions_total",
		Help:      "Step submissions handled by the normalizer, labeled by payload shape and outcome.",
	}, []string{"shape", "outcome"})

	recordsAppliedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "records_applied_total",
		Help:      "Step records written to the ledger.",
	})

	stepDecreaseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "step_decreases_total",
		Help:      "Re-ingested days whose new step count is lower than the recorded one.",
	})

	staleWriteCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "stale_writes_total",
		Help:      "Records skipped because a newer ingestion already owns the day.",
	})

	lastRecordedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "last_steps_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent step batch committed to the ledger.",
	})

	storeUnavailableCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "store_unavailable_total",
		Help:      "Store calls that failed or timed out, labeled by operation.",
	}, []string{"operation"})

	registryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "operations_total",
		Help:      "League registry operations labeled by operation and outcome.",
	}, []string{"operation", "outcome"})

	aggregationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "lottery",
		Name:      "aggregation_duration_seconds",
		Help:      "Time spent recomputing leaderboards and pot schedules from the ledger.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation"})

	cohortSizeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "lottery",
		Name:      "cohort_size",
		Help:      "Size of the most recently aggregated cohort, labeled by scope kind.",
	}, []string{"scope"})
)

func init() {
	prometheus.MustRegister(
		submissionsCounter,
		recordsAppliedCounter,
		stepDecreaseCounter,
		staleWriteCounter,
		lastRecordedGauge,
		storeUnavailableCounter,
		registryCounter,
		aggregationDuration,
		cohortSizeGauge,
	)
}

// RecordSubmission counts one normalizer call.
func RecordSubmission(shape, outcome string) {
	submissionsCounter.WithLabelValues(shape, outcome).Inc()
}

// RecordStepsApplied updates the applied counter and the persistence watermark.
func RecordStepsApplied(n int, ts time.Time) {
	if n <= 0 {
		return
	}
	recordsAppliedCounter.Add(float64(n))
	if !ts.IsZero() {
		lastRecordedGauge.Set(float64(ts.Unix()))
	}
}

// RecordStepDecrease counts a replacement that lowered a day's total.
func RecordStepDecrease() {
	stepDecreaseCounter.Inc()
}

// RecordStaleWrite counts a record dropped by last-write-wins.
func RecordStaleWrite() {
	staleWriteCounter.Inc()
}

// RecordStoreUnavailable counts a failed store call.
func RecordStoreUnavailable(operation string) {
	storeUnavailableCounter.WithLabelValues(operation).Inc()
}

// RecordRegistry counts a registry operation.
func RecordRegistry(operation, outcome string) {
	registryCounter.WithLabelValues(operation, outcome).Inc()
}

// ObserveAggregation records how long an aggregation took.
func ObserveAggregation(operation string, started time.Time) {
	aggregationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// RecordCohortSize sets the cohort gauge for "global" or "league".
func RecordCohortSize(scope string, n int) {
	cohortSizeGauge.WithLabelValues(scope).Set(float64(n))
}

// StepDecreaseCollector exposes the decrease counter so callers can assert on it.
func StepDecreaseCollector() prometheus.Collector {
	return stepDecreaseCounter
}
