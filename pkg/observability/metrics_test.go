package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-run/lattice/internal/runtime"
	"github.com/lattice-run/lattice/pkg/domain"
	"github.com/lattice-run/lattice/pkg/observability"
)

type noopEvaluator struct{}

func (noopEvaluator) Execute(context.Context, string, *domain.Context) error {
	return nil
}

func (noopEvaluator) EvaluateGuard(context.Context, string, *domain.Context) (bool, error) {
	return true, nil
}

func TestMetrics_CountEngineActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	engine := runtime.NewEngine(noopEvaluator{}, runtime.WithHooks(metrics.Hooks()))

	def := &domain.ModelFile{
		Name: "toggle",
		States: []domain.StateDef{
			{Name: "off", IsInitial: true, EntryAction: "prepare()"},
			{Name: "on"},
		},
		Transitions: []domain.TransitionDef{
			{Source: "off", Target: "on", Event: "flip"},
			{Source: "on", Target: "off"},
		},
	}
	ctx := context.Background()
	require.NoError(t, engine.Start(ctx, def))

	// flip fires, then the eventless transition brings it straight back.
	_, err := engine.Step(ctx, &domain.Event{Name: "flip"})
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.StateEnters.WithLabelValues("off")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StateEnters.WithLabelValues("on")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Transitions.WithLabelValues("flip")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Transitions.WithLabelValues("(eventless)")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Steps)) // start + step
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.StepErrors))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ActionsRun))
}

func TestMetrics_CountStepErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	failing := failingEvaluator{}
	engine := runtime.NewEngine(failing, runtime.WithHooks(metrics.Hooks()))

	def := &domain.ModelFile{
		States: []domain.StateDef{
			{Name: "a", IsInitial: true, EntryAction: "explode()"},
		},
	}
	require.Error(t, engine.Start(context.Background(), def))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StepErrors))
}

type failingEvaluator struct{}

func (failingEvaluator) Execute(context.Context, string, *domain.Context) error {
	return assert.AnError
}

func (failingEvaluator) EvaluateGuard(context.Context, string, *domain.Context) (bool, error) {
	return false, assert.AnError
}
