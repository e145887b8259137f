// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paper_triage"

// Metrics holds the dispatcher's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Attempts counts analysis attempts by result
	// (success, transient, malformed, permanent, timeout).
	Attempts *prometheus.CounterVec

	// AttemptDuration observes attempt duration in seconds.
	AttemptDuration prometheus.Histogram

	// Retries counts attempts scheduled for retry.
	Retries prometheus.Counter

	// Outcomes counts final per-record outcomes by decision, or "failed".
	Outcomes *prometheus.CounterVec

	// InFlight is the number of attempts currently running.
	InFlight prometheus.Gauge

	// CheckpointFlushes counts checkpoint writes by status (ok, error).
	CheckpointFlushes *prometheus.CounterVec

	// RecordsSkipped counts records skipped because a previous run completed them.
	RecordsSkipped prometheus.Counter
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Analysis attempts by result.",
		}, []string{"result"}),
		AttemptDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Duration of one analysis attempt.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Attempts scheduled for retry.",
		}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Final per-record outcomes by decision.",
		}, []string{"outcome"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attempts_in_flight",
			Help:      "Analysis attempts currently running.",
		}),
		CheckpointFlushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_flushes_total",
			Help:      "Checkpoint writes by status.",
		}, []string{"status"}),
		RecordsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Records skipped because they were already checkpointed.",
		}),
	}
}

// AttemptStarted marks an attempt as running.
func (m *Metrics) AttemptStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// AttemptFinished records the result and duration of an attempt.
func (m *Metrics) AttemptFinished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.Attempts.WithLabelValues(result).Inc()
	m.AttemptDuration.Observe(d.Seconds())
}

// Retried counts a scheduled retry.
func (m *Metrics) Retried() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

// Outcome counts a final outcome.
func (m *Metrics) Outcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

// CheckpointFlushed counts a checkpoint write.
func (m *Metrics) CheckpointFlushed(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CheckpointFlushes.WithLabelValues(status).Inc()
}

// Skipped counts records skipped on resume.
func (m *Metrics) Skipped(n int) {
	if m == nil {
		return
	}
	m.RecordsSkipped.Add(float64(n))
}
