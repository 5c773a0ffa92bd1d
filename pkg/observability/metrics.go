// Package observability bridges engine lifecycle hooks to Prometheus.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lattice-run/lattice/pkg/domain"
)

// Metrics holds the Prometheus collectors for engine activity.
type Metrics struct {
	StateEnters *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Steps       prometheus.Counter
	StepErrors  prometheus.Counter
	ActionsRun  prometheus.Counter
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StateEnters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_state_enters_total",
				Help: "Total number of state entries",
			},
			[]string{"state"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lattice_transitions_total",
				Help: "Total number of fired transitions",
			},
			[]string{"event"},
		),
		Steps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lattice_steps_total",
				Help: "Total number of executed steps",
			},
		),
		StepErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lattice_step_errors_total",
				Help: "Total number of steps that recorded an error",
			},
		),
		ActionsRun: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lattice_actions_run_total",
				Help: "Total number of executed entry/during/exit/transition actions",
			},
		),
	}
	reg.MustRegister(m.StateEnters, m.Transitions, m.Steps, m.StepErrors, m.ActionsRun)
	return m
}

// Hooks returns lifecycle hooks that feed the collectors. Chain them into the
// engine via WithHooks.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			m.StateEnters.WithLabelValues(e.State).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			event := e.Event
			if e.Eventless {
				event = "(eventless)"
			}
			m.Transitions.WithLabelValues(event).Inc()
		},
		OnStep: func(_ context.Context, r *domain.StepRecord) {
			m.Steps.Inc()
			m.ActionsRun.Add(float64(len(r.ActionsRun)))
			if len(r.Errors) > 0 {
				m.StepErrors.Inc()
			}
		},
	}
}
