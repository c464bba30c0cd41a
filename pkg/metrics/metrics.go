// Package metrics provides Prometheus metrics for the Bramble loader.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsProcessedTotal tracks records processed by job and outcome
	RecordsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "loader",
			Name:      "records_processed_total",
			Help:      "Total number of records processed by job and outcome",
		},
		[]string{"job", "outcome"},
	)

	// BatchesMergedTotal tracks graph merge batches by job and status
	BatchesMergedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "graph",
			Name:      "batches_merged_total",
			Help:      "Total number of graph merge batches by job and status",
		},
		[]string{"job", "status"},
	)

	// JobRunDuration tracks the wall time of a single job run
	JobRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "loader",
			Name:      "run_duration_seconds",
			Help:      "Duration of a single job run in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 520, 600},
		},
		[]string{"job"},
	)

	// JobRunsTotal tracks completed job runs by job and status
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "loader",
			Name:      "runs_total",
			Help:      "Total number of job runs by job and status",
		},
		[]string{"job", "status"},
	)

	// SoftFailuresTotal tracks records parked on the cursor soft-failure list
	SoftFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "loader",
			Name:      "soft_failures_total",
			Help:      "Total number of records recorded as soft failures",
		},
		[]string{"job"},
	)

	// RequeuesTotal tracks continuation messages published when a run hits its time budget
	RequeuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "loader",
			Name:      "requeues_total",
			Help:      "Total number of continuation requeues by job",
		},
		[]string{"job"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// SourceFetchDuration tracks upstream fetch duration by job
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream source fetches in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"job"},
	)
)

// RecordBatch records the outcome of one driver iteration.
func RecordBatch(job string, merged, skipped int) {
	if merged > 0 {
		RecordsProcessedTotal.WithLabelValues(job, "merged").Add(float64(merged))
	}
	if skipped > 0 {
		RecordsProcessedTotal.WithLabelValues(job, "skipped").Add(float64(skipped))
		SoftFailuresTotal.WithLabelValues(job).Add(float64(skipped))
	}
}

// RecordFetch records one upstream source fetch.
func RecordFetch(job string, durationSeconds float64) {
	SourceFetchDuration.WithLabelValues(job).Observe(durationSeconds)
}

// RecordRun records a completed job run.
func RecordRun(job, status string, durationSeconds float64) {
	JobRunsTotal.WithLabelValues(job, status).Inc()
	JobRunDuration.WithLabelValues(job).Observe(durationSeconds)
}

// RecordRequeue records a continuation requeue.
func RecordRequeue(job string) {
	RequeuesTotal.WithLabelValues(job).Inc()
}

// RecordKafkaPublish records a Kafka publish operation.
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
