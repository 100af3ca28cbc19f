// Package metrics exposes Prometheus instruments for migration runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors the migration engine updates. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	RecordsTotal  *prometheus.CounterVec
	BatchesTotal  *prometheus.CounterVec
	BatchDuration prometheus.Histogram
	OracleErrors  prometheus.Counter
	RunsTotal     *prometheus.CounterVec
	RunProgress   prometheus.Gauge
	RunInProgress prometheus.Gauge
	PurgedRecords prometheus.Counter
	SourceRecords prometheus.Gauge
	SinkRecords   prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Per-record outcomes: migrated, skipped, failed
		RecordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attsync_records_total",
				Help: "Total number of attendance records processed, by outcome",
			},
			[]string{"outcome"},
		),
		BatchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attsync_batches_total",
				Help: "Total number of sink batch inserts, by status",
			},
			[]string{"status"},
		),
		BatchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "attsync_batch_duration_seconds",
				Help:    "Duration of sink batch inserts in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		OracleErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "attsync_existence_check_errors_total",
				Help: "Total number of failed existence checks treated as not present",
			},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attsync_runs_total",
				Help: "Total number of migration runs, by kind and status",
			},
			[]string{"kind", "status"},
		),
		RunProgress: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "attsync_run_progress_percent",
				Help: "Progress of the current full migration",
			},
		),
		RunInProgress: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "attsync_run_in_progress",
				Help: "1 while a full migration is running",
			},
		),
		PurgedRecords: f.NewCounter(
			prometheus.CounterOpts{
				Name: "attsync_purged_records_total",
				Help: "Total number of sink records removed by confirmed purges",
			},
		),
		SourceRecords: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "attsync_source_records",
				Help: "Source record count at the last status report",
			},
		),
		SinkRecords: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "attsync_sink_records",
				Help: "Sink record count at the last status report",
			},
		),
	}
}

// Record outcomes.
const (
	OutcomeMigrated = "migrated"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

func (m *Metrics) AddRecords(outcome string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) ObserveBatch(ok bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.BatchesTotal.WithLabelValues(status).Inc()
	m.BatchDuration.Observe(seconds)
}

func (m *Metrics) OracleError() {
	if m == nil {
		return
	}
	m.OracleErrors.Inc()
}

func (m *Metrics) RunFinished(kind, status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) SetProgress(pct float64) {
	if m == nil {
		return
	}
	m.RunProgress.Set(pct)
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.RunInProgress.Set(1)
		return
	}
	m.RunInProgress.Set(0)
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.PurgedRecords.Add(float64(n))
}

func (m *Metrics) SetTotals(source, sink int64) {
	if m == nil {
		return
	}
	m.SourceRecords.Set(float64(source))
	m.SinkRecords.Set(float64(sink))
}
