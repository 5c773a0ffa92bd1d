package ports

import (
	"context"

	"github.com/lattice-run/lattice/pkg/domain"
)

// ActionEvaluator is the abstract contract for executing user-supplied
// guard/action code. The engine never parses code itself; it only depends on
// this interface, which decouples the sandboxing/execution strategy entirely
// from the state-machine logic.
//
// Implementations read and write the scope's variable workspace and may
// inspect scope.Event. The engine guarantees strictly serial, non-reentrant
// calls within one session; an evaluator instance must not be shared across
// sessions unless it is stateless.
type ActionEvaluator interface {
	// EvaluateGuard evaluates a boolean condition against the workspace.
	// It must not mutate the workspace.
	EvaluateGuard(ctx context.Context, code string, scope *domain.Context) (bool, error)

	// Execute runs action code against the workspace. Variables created or
	// modified by the code persist in scope.Vars for subsequent evaluations.
	Execute(ctx context.Context, code string, scope *domain.Context) error
}
