package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tablewright/tablewright/internal/engine"
)

type metrics struct {
	alterations *prometheus.CounterVec // by mode and outcome
	statements  *prometheus.CounterVec // by outcome
	duration    *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		alterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablewright_alterations_total",
				Help: "Alterations run, partitioned by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tablewright_statements_total",
				Help: "DDL statements, partitioned by outcome (executed, remaining).",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tablewright_alteration_duration_seconds",
				Help:    "Wall time of alterations in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
	}
	reg.MustRegister(m.alterations, m.statements, m.duration)
	return m
}

// observe records the outcome of one alteration.
func (m *metrics) observe(result *engine.Result, err error) {
	if result == nil || result.Plan == nil {
		return
	}
	mode := result.Plan.Mode
	outcome := "completed"
	switch {
	case result.Partial:
		outcome = "partial_failure"
	case result.Aborted:
		outcome = "rolled_back"
	case err != nil:
		outcome = "failed"
	case result.Plan.Empty():
		outcome = "unchanged"
	}
	m.alterations.WithLabelValues(mode, outcome).Inc()
	m.statements.WithLabelValues("executed").Add(float64(len(result.Executed())))
	if err != nil {
		m.statements.WithLabelValues("remaining").Add(float64(len(result.Remaining())))
	}
	if result.Status != nil {
		m.duration.WithLabelValues(mode).Observe(result.Status.ElapsedTime.Seconds())
	}
}
