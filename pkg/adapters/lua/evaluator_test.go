package lua_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-run/lattice/pkg/adapters/lua"
	"github.com/lattice-run/lattice/pkg/domain"
)

func TestEvaluator_ExecuteWritesWorkspace(t *testing.T) {
	eval := lua.New()
	scope := domain.NewContext()

	err := eval.Execute(context.Background(), `count = 1; name = "red"; armed = true`, scope)
	require.NoError(t, err)

	// Lua numbers come back as float64.
	assert.Equal(t, float64(1), scope.Vars["count"])
	assert.Equal(t, "red", scope.Vars["name"])
	assert.Equal(t, true, scope.Vars["armed"])
}

func TestEvaluator_WorkspaceRoundTrips(t *testing.T) {
	eval := lua.New()
	scope := domain.NewContext()
	scope.Set("count", 2)

	err := eval.Execute(context.Background(), `count = count + 1`, scope)
	require.NoError(t, err)
	assert.Equal(t, float64(3), scope.Vars["count"])
}

func TestEvaluator_NilAssignmentRemovesVariable(t *testing.T) {
	eval := lua.New()
	scope := domain.NewContext()
	scope.Set("stale", "yes")

	err := eval.Execute(context.Background(), `stale = nil`, scope)
	require.NoError(t, err)
	_, ok := scope.Get("stale")
	assert.False(t, ok)
}

func TestEvaluator_ScopesAreIsolated(t *testing.T) {
	// One evaluator may serve successive sessions; globals from an earlier
	// scope must not leak into a fresh one.
	eval := lua.New()

	first := domain.NewContext()
	require.NoError(t, eval.Execute(context.Background(), `secret = 42`, first))

	second := domain.NewContext()
	require.NoError(t, eval.Execute(context.Background(), `leaked = (secret ~= nil)`, second))
	assert.Equal(t, false, second.Vars["leaked"])
}

func TestEvaluator_Tables(t *testing.T) {
	eval := lua.New()
	scope := domain.NewContext()

	err := eval.Execute(context.Background(), `seq = {10, 20, 30}; rec = {color = "red", n = 1}`, scope)
	require.NoError(t, err)

	assert.Equal(t, []any{float64(10), float64(20), float64(30)}, scope.Vars["seq"])
	assert.Equal(t, map[string]any{"color": "red", "n": float64(1)}, scope.Vars["rec"])
}

func TestEvaluator_ExecuteErrors(t *testing.T) {
	eval := lua.New()
	scope := domain.NewContext()
	scope.Set("count", 1)

	t.Run("syntax error", func(t *testing.T) {
		err := eval.Execute(context.Background(), `count = = 1`, scope)
		assert.Error(t, err)
	})

	t.Run("runtime error", func(t *testing.T) {
		err := eval.Execute(context.Background(), `error("boom")`, scope)
		assert.Error(t, err)
	})

	// A failed action leaves the workspace untouched.
	assert.Equal(t, 1, scope.Vars["count"])
}

func TestEvaluator_ExecuteHonorsContext(t *testing.T) {
	eval := lua.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := eval.Execute(ctx, `x = 1`, domain.NewContext())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluator_Guards(t *testing.T) {
	eval := lua.New()
	scope := domain.NewContext()
	scope.Set("count", 3)

	t.Run("true expression", func(t *testing.T) {
		ok, err := eval.EvaluateGuard(context.Background(), `count > 2`, scope)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("false expression", func(t *testing.T) {
		ok, err := eval.EvaluateGuard(context.Background(), `count > 10`, scope)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing variable is falsy", func(t *testing.T) {
		ok, err := eval.EvaluateGuard(context.Background(), `never_set`, scope)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed expression", func(t *testing.T) {
		_, err := eval.EvaluateGuard(context.Background(), `count >`, scope)
		assert.Error(t, err)
	})

	t.Run("guards never mutate the workspace", func(t *testing.T) {
		ok, err := eval.EvaluateGuard(context.Background(), `(function() probe = 1; return true end)()`, scope)
		require.NoError(t, err)
		assert.True(t, ok)
		_, found := scope.Get("probe")
		assert.False(t, found)
	})
}

func TestEvaluator_EventAccess(t *testing.T) {
	eval := lua.New()
	scope := domain.NewContext()
	scope.Event = &domain.Event{
		Name:    "coin",
		Payload: map[string]any{"amount": 25},
	}

	err := eval.Execute(context.Background(), `seen = event.name; amount = event.payload.amount`, scope)
	require.NoError(t, err)
	assert.Equal(t, "coin", scope.Vars["seen"])
	assert.Equal(t, float64(25), scope.Vars["amount"])

	ok, err := eval.EvaluateGuard(context.Background(), `event.payload.amount >= 25`, scope)
	require.NoError(t, err)
	assert.True(t, ok)

	// No event, no global.
	scope.Event = nil
	ok, err = eval.EvaluateGuard(context.Background(), `event == nil`, scope)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluator_Sandbox(t *testing.T) {
	eval := lua.New()
	scope := domain.NewContext()

	for _, name := range []string{"os", "io", "dofile", "loadfile", "load", "loadstring"} {
		ok, err := eval.EvaluateGuard(context.Background(), name+` == nil`, scope)
		require.NoError(t, err)
		assert.True(t, ok, "%s must not be reachable from user code", name)
	}

	// Pure computation libraries stay available.
	err := eval.Execute(context.Background(), `big = math.max(1, 2); upper = string.upper("ok")`, scope)
	require.NoError(t, err)
	assert.Equal(t, float64(2), scope.Vars["big"])
	assert.Equal(t, "OK", scope.Vars["upper"])
}
