package runtime

import (
	"context"

	"github.com/lattice-run/lattice/pkg/domain"
)

// resolve finds the eligible transition for the current configuration.
//
// The search starts at the innermost active leaf's owning machine and scans
// that machine's transitions in declaration order; the first eligible one
// wins, which makes priority deterministic. If nothing matches, the search
// ascends to the parent machine, treating the enclosing superstate as the
// current state at that level (hierarchical bubbling), until the root.
//
// event == "" selects the eventless pass: only transitions without an event
// are considered. Otherwise only exact event matches are considered; the
// eventless fallback runs as a separate pass per step so at most one
// eventless transition can ever fire per step.
//
// No match is not an error; the event simply has no effect. A guard that
// fails to evaluate aborts the search with an ActionError.
func (e *Engine) resolve(ctx context.Context, event string) (*domain.TransitionEdge, int, error) {
	for level := e.config.depth() - 1; level >= 0; level-- {
		current := e.config.at(level)
		machine := e.model.Machine(e.model.State(current).Owner)

		for _, tid := range machine.Transitions {
			t := e.model.Transition(tid)
			if t.Source != current {
				continue
			}
			if t.Event != event {
				continue
			}
			ok, err := e.guardHolds(ctx, t)
			if err != nil {
				return nil, 0, err
			}
			if ok {
				return t, level, nil
			}
		}
	}
	return nil, 0, nil
}

// guardHolds evaluates a transition's guard, if any. A missing guard is
// always eligible; a false guard makes the transition invisible to the
// resolver rather than an error.
func (e *Engine) guardHolds(ctx context.Context, t *domain.TransitionEdge) (bool, error) {
	if t.Condition == "" {
		return true, nil
	}
	ok, err := e.evaluator.EvaluateGuard(ctx, t.Condition, e.scope)
	if err != nil {
		return false, &domain.ActionError{
			Op:     domain.OpGuard,
			Origin: e.transitionLabel(t),
			Code:   t.Condition,
			Err:    err,
		}
	}
	return ok, nil
}

// transitionLabel renders a stable human-readable id for logs and errors.
func (e *Engine) transitionLabel(t *domain.TransitionEdge) string {
	src := e.model.State(t.Source).Name
	dst := e.model.State(t.Target).Name
	if t.Eventless() {
		return src + "->" + dst
	}
	return src + "--" + t.Event + "-->" + dst
}
