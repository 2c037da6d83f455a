package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for parameter scans.
type Metrics struct {
	// Samples evaluated by row status
	Samples *prometheus.CounterVec

	// Finished scans by terminal status
	ScanOutcome *prometheus.CounterVec

	// Wall time of a whole scan
	ScanDuration prometheus.Histogram

	// Wall time of one evaluator batch
	BatchDuration prometheus.Histogram

	// Scans currently running
	InFlight prometheus.Gauge

	// Sensitivity cache lookups by result
	CacheLookups *prometheus.CounterVec
}

// New registers every scan metric with reg. Passing a fresh registry keeps
// tests isolated; production passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Samples: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "luftscan_samples_total",
			Help: "Samples evaluated by row status",
		}, []string{"status"}), // status: "ok", "failed"

		ScanOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "luftscan_scans_total",
			Help: "Finished scans by terminal status",
		}, []string{"status"}),

		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "luftscan_scan_duration_seconds",
			Help:    "Duration of a full scan including sampling and export",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "luftscan_batch_duration_seconds",
			Help:    "Duration of one evaluator batch",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "luftscan_scans_in_flight",
			Help: "Scans currently running",
		}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "luftscan_sensitivity_cache_lookups_total",
			Help: "Sensitivity cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
}

// ObserveBatch records one evaluator batch.
func (m *Metrics) ObserveBatch(size, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.Samples.WithLabelValues("ok").Add(float64(size - failed))
	m.Samples.WithLabelValues("failed").Add(float64(failed))
	m.BatchDuration.Observe(d.Seconds())
}

// ScanStarted marks a scan as running.
func (m *Metrics) ScanStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

// ScanFinished records the terminal status and duration of a scan.
func (m *Metrics) ScanFinished(status string, d time.Duration) {
	if m != nil {
		m.InFlight.Dec()
		m.ScanOutcome.WithLabelValues(status).Inc()
		m.ScanDuration.Observe(d.Seconds())
	}
}

// CacheLookup records a sensitivity cache lookup.
func (m *Metrics) CacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
