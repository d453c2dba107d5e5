package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the classification pipeline.
type Metrics struct {
	Evaluations     *prometheus.CounterVec
	EvalDuration    prometheus.Histogram
	MemberSkips     *prometheus.CounterVec
	DriftEvents     prometheus.Counter
	BatchesFlushed  prometheus.Counter
	SignalsEmitted  *prometheus.CounterVec
	WindowSize      prometheus.Gauge
	RecentAccuracy  prometheus.Gauge
	CurrentAccuracy prometheus.Gauge
}

// NewMetrics builds the instrument set. Pass a registry to register them; a
// nil registry leaves registration to the caller (handy in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citarion_evaluations_total",
				Help: "Pipeline evaluations by predicted direction",
			},
			[]string{"symbol", "direction"},
		),
		EvalDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "citarion_evaluation_duration_seconds",
				Help:    "End-to-end evaluation latency",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
			},
		),
		MemberSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citarion_ensemble_member_skips_total",
				Help: "Ensemble members skipped by timeout or open breaker",
			},
			[]string{"member"},
		),
		DriftEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "citarion_drift_events_total",
				Help: "Concept drift detections",
			},
		),
		BatchesFlushed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "citarion_training_batches_total",
				Help: "Training batches flushed to the classifier",
			},
		),
		SignalsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "citarion_signals_total",
				Help: "Signals processed, labeled by action and filter outcome",
			},
			[]string{"action", "passed"},
		),
		WindowSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "citarion_training_window_size",
				Help: "Current classifier training window length",
			},
		),
		RecentAccuracy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "citarion_recent_accuracy",
				Help: "Accuracy over the recent outcome window",
			},
		),
		CurrentAccuracy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "citarion_current_accuracy",
				Help: "Cumulative prediction accuracy",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.Evaluations, m.EvalDuration, m.MemberSkips, m.DriftEvents,
			m.BatchesFlushed, m.SignalsEmitted, m.WindowSize,
			m.RecentAccuracy, m.CurrentAccuracy,
		)
	}
	return m
}
