// Package metrics provides Prometheus metrics for the BuildBox agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	PlansGenerated     *prometheus.CounterVec
	PlanFormatErrors   prometheus.Counter
	ExecutionsTotal    *prometheus.CounterVec
	FileActionsTotal   *prometheus.CounterVec
	CompletionDuration prometheus.Histogram
	PushesTotal        *prometheus.CounterVec
	SessionsActive     prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		PlansGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildbox_plans_generated_total",
				Help: "Total plan generation attempts by outcome.",
			},
			[]string{"outcome"},
		),
		PlanFormatErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "buildbox_plan_format_errors_total",
				Help: "Completion responses rejected as unparseable plans.",
			},
		),
		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildbox_executions_total",
				Help: "Total plan executions by outcome.",
			},
			[]string{"outcome"},
		),
		FileActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildbox_file_actions_total",
				Help: "File changes applied during execution by action and level.",
			},
			[]string{"action", "level"},
		),
		CompletionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "buildbox_completion_duration_seconds",
				Help:    "Completion service round-trip duration.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		PushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildbox_pushes_total",
				Help: "Total pushes to the upstream repository by outcome.",
			},
			[]string{"outcome"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "buildbox_sessions_active",
				Help: "Number of live editing sessions.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.PlansGenerated)
	reg.MustRegister(m.PlanFormatErrors)
	reg.MustRegister(m.ExecutionsTotal)
	reg.MustRegister(m.FileActionsTotal)
	reg.MustRegister(m.CompletionDuration)
	reg.MustRegister(m.PushesTotal)
	reg.MustRegister(m.SessionsActive)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPlan increments the plan generation counter.
func (m *Metrics) RecordPlan(outcome string) {
	m.PlansGenerated.WithLabelValues(outcome).Inc()
}

// RecordExecution increments the execution counter.
func (m *Metrics) RecordExecution(outcome string) {
	m.ExecutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordFileAction increments the per-change counter.
func (m *Metrics) RecordFileAction(action, level string) {
	m.FileActionsTotal.WithLabelValues(action, level).Inc()
}

// RecordPush increments the push counter.
func (m *Metrics) RecordPush(outcome string) {
	m.PushesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records a completion round-trip duration.
func (m *Metrics) ObserveCompletion(seconds float64) {
	m.CompletionDuration.Observe(seconds)
}
