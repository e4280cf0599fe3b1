package claim

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes run and outcome counters for scraping.
type Metrics struct {
	runs        prometheus.Counter
	outcomes    *prometheus.CounterVec
	runDuration prometheus.Histogram
	runActive   prometheus.Gauge
}

// NewMetrics registers the claim metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "claimd_runs_total",
			Help: "Number of batch runs started.",
		}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claimd_outcomes_total",
			Help: "Per-account processing outcomes.",
		}, []string{"outcome"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimd_run_duration_seconds",
			Help:    "Wall-clock duration of batch runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		runActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "claimd_run_active",
			Help: "1 while a batch run is in flight.",
		}),
	}
}

// RunStarted records the start of a batch run.
func (m *Metrics) RunStarted() {
	m.runs.Inc()
	m.runActive.Set(1)
}

// RunFinished records the end of a batch run.
func (m *Metrics) RunFinished(elapsed time.Duration) {
	m.runActive.Set(0)
	m.runDuration.Observe(elapsed.Seconds())
}

// RecordOutcome counts one per-account outcome.
func (m *Metrics) RecordOutcome(o Outcome) {
	m.outcomes.WithLabelValues(string(o)).Inc()
}
