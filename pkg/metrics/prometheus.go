package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	feedsProcessed *prometheus.CounterVec
	reconRecords   *prometheus.CounterVec
	discrepancies  *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		feedsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custsync_feeds_processed_total",
				Help: "Total data feeds processed, by custodian, feed type and outcome",
			},
			[]string{"custodian", "feed_type", "status"},
		),
		reconRecords: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custsync_reconciled_records_total",
				Help: "Total reconciled records by match outcome",
			},
			[]string{"custodian", "outcome"},
		),
		discrepancies: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custsync_material_discrepancies_total",
				Help: "Material discrepancies outside tolerance",
			},
			[]string{"custodian", "field"},
		),
		retriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custsync_retries_total",
				Help: "Retried custodian requests by trigger",
			},
			[]string{"op"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custsync_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "custsync_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFeedProcessed counts one finished feed run.
func (r *Recorder) RecordFeedProcessed(custodian, feedType, status string) {
	r.feedsProcessed.WithLabelValues(custodian, feedType, status).Inc()
}

// RecordReconciliation counts matched and unmatched records of a run.
func (r *Recorder) RecordReconciliation(custodian string, matched, unmatched int) {
	r.reconRecords.WithLabelValues(custodian, "matched").Add(float64(matched))
	r.reconRecords.WithLabelValues(custodian, "unmatched").Add(float64(unmatched))
}

// RecordDiscrepancy counts one material field discrepancy.
func (r *Recorder) RecordDiscrepancy(custodian, field string) {
	r.discrepancies.WithLabelValues(custodian, field).Inc()
}

// RecordRetry counts one retried custodian request.
func (r *Recorder) RecordRetry(op string) {
	r.retriesTotal.WithLabelValues(op).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
