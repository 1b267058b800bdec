package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeConfigError = "config_error"
	OutcomeSystemError = "system_error"
)

// Metrics holds the Prometheus collectors of the mirror. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	SkippedCycles    prometheus.Counter
	PostsPublished   prometheus.Counter
	PublishFailures  *prometheus.CounterVec
	FetchFailures    prometheus.Counter
	LedgerSize       prometheus.Gauge
	SchedulerRunning prometheus.Gauge
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		CyclesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nostr_mirror_cycles_total",
				Help: "Total number of mirror cycles by outcome",
			},
			[]string{"outcome"},
		),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nostr_mirror_cycle_duration_seconds",
			Help:    "Duration of mirror cycles in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		SkippedCycles: f.NewCounter(prometheus.CounterOpts{
			Name: "nostr_mirror_skipped_cycles_total",
			Help: "Timer fires skipped because a cycle was still in flight",
		}),
		PostsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "nostr_mirror_posts_published_total",
			Help: "Total number of posts mirrored successfully",
		}),
		PublishFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nostr_mirror_publish_failures_total",
				Help: "Total number of failed post publications by pipeline step",
			},
			[]string{"step"},
		),
		FetchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "nostr_mirror_fetch_failures_total",
			Help: "Total number of per-account fetch failures",
		}),
		LedgerSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "nostr_mirror_ledger_size",
			Help: "Number of source links recorded as processed",
		}),
		SchedulerRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "nostr_mirror_scheduler_running",
			Help: "1 while the scheduler is armed, 0 otherwise",
		}),
	}
}

func (m *Metrics) CycleFinished(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(took.Seconds())
}

func (m *Metrics) CycleSkipped() {
	if m == nil {
		return
	}
	m.SkippedCycles.Inc()
}

func (m *Metrics) PostPublished(ledgerSize int) {
	if m == nil {
		return
	}
	m.PostsPublished.Inc()
	m.LedgerSize.Set(float64(ledgerSize))
}

func (m *Metrics) PublishFailed(step string) {
	if m == nil {
		return
	}
	if step == "" {
		step = "unknown"
	}
	m.PublishFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) FetchFailed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FetchFailures.Add(float64(n))
}

func (m *Metrics) SetLedgerSize(n int) {
	if m == nil {
		return
	}
	m.LedgerSize.Set(float64(n))
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.SchedulerRunning.Set(1)
		return
	}
	m.SchedulerRunning.Set(0)
}
