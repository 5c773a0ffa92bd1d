package domain

import (
	"context"
	"time"
)

// StepRecord is the structured per-step account returned to the host for
// logging. ActionsRun lists every executed action site in execution order,
// formatted as "<op>:<state-or-transition>".
type StepRecord struct {
	Event            *Event   `json:"event,omitempty"`
	TransitionFired  string   `json:"transition_fired,omitempty"`
	ActionsRun       []string `json:"actions_run"`
	Errors           []string `json:"errors,omitempty"`
	Path             []string `json:"path"`
	EventlessFired   string   `json:"eventless_fired,omitempty"`
}

// StateEvent describes a state being entered or exited.
type StateEvent struct {
	Timestamp time.Time
	State     string
	Machine   string
}

// TransitionEvent describes a fired transition.
type TransitionEvent struct {
	Timestamp time.Time
	Event     string
	Source    string
	Target    string
	Eventless bool
}

// LifecycleHooks defines callbacks for engine observability. All hooks are
// optional and invoked synchronously on the stepping goroutine, so they must
// be fast and must not call back into the engine.
type LifecycleHooks struct {
	OnStateEnter func(context.Context, *StateEvent)
	OnStateExit  func(context.Context, *StateEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnStep       func(context.Context, *StepRecord)
}
