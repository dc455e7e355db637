package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	bucketsUpdated *prometheus.CounterVec
	mergeErrors    *prometheus.CounterVec
	ledgerSkips    *prometheus.CounterVec
	rowsSkipped    *prometheus.CounterVec
	writeLatency   prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		bucketsUpdated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optibase_buckets_updated_total",
				Help: "Total number of time buckets merged into weekday masters",
			},
			[]string{"index", "expiry", "kind"},
		),
		mergeErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optibase_merge_errors_total",
				Help: "Total number of failed master merges",
			},
			[]string{"type"},
		),
		ledgerSkips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optibase_ledger_skips_total",
				Help: "Total number of reconciliations skipped because the date was already ledgered",
			},
			[]string{"index", "expiry"},
		),
		rowsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optibase_source_rows_skipped_total",
				Help: "Total number of source CSV rows dropped before aggregation",
			},
			[]string{"reason"},
		),
		writeLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "optibase_master_write_duration_seconds",
				Help:    "Duration of weekday master file writes in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordBucketUpdated records one merged time bucket (kind is base or pair).
func (r *Recorder) RecordBucketUpdated(index, expiry, kind string) {
	r.bucketsUpdated.WithLabelValues(index, expiry, kind).Inc()
}

// RecordMergeError records a failed merge.
func (r *Recorder) RecordMergeError(kind string) {
	r.mergeErrors.WithLabelValues(kind).Inc()
}

// RecordLedgerSkip records a reconciliation skipped by the ledger guard.
func (r *Recorder) RecordLedgerSkip(index, expiry string) {
	r.ledgerSkips.WithLabelValues(index, expiry).Inc()
}

// RecordSourceRowsSkipped records dropped source rows by reason.
func (r *Recorder) RecordSourceRowsSkipped(reason string, n int) {
	if n <= 0 {
		return
	}
	r.rowsSkipped.WithLabelValues(reason).Add(float64(n))
}

// RecordWriteLatency records one master write duration in seconds.
func (r *Recorder) RecordWriteLatency(seconds float64) {
	r.writeLatency.Observe(seconds)
}
