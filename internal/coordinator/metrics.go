// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "research_coordinator"

// Metrics holds the coordinator's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	runsActive     prometheus.Gauge
	runsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	critiqueScore  prometheus.Histogram
	revisions      prometheus.Counter
	sourceFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Research runs currently in progress.",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished research runs by outcome (accepted, best_effort, failed).",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each stage invocation.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		critiqueScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "critique_score",
			Help:      "Overall scores returned by the critique stage.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		revisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revisions_total",
			Help:      "Revisions started across all runs.",
		}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Data source calls that failed and were masked.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.runsActive, m.runsTotal, m.stageDuration, m.critiqueScore, m.revisions, m.sourceFailures)
	}
	return m
}

func (m *Metrics) runStarted() {
	if m != nil {
		m.runsActive.Inc()
	}
}

func (m *Metrics) runFinished(outcome string) {
	if m != nil {
		m.runsActive.Dec()
		m.runsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m != nil {
		m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) observeScore(score float64) {
	if m != nil {
		m.critiqueScore.Observe(score)
	}
}

func (m *Metrics) revisionStarted() {
	if m != nil {
		m.revisions.Inc()
	}
}

func (m *Metrics) sourceFailed(source string) {
	if m != nil {
		m.sourceFailures.WithLabelValues(source).Inc()
	}
}
