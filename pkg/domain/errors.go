package domain

import (
	"errors"
	"fmt"
)

// SimulationError is the single error family crossing the public API. Every
// failure the engine can produce is one of StructuralError, ActionError or
// RuntimeError; nothing escapes as a panic.
type SimulationError interface {
	error
	simulationError()
}

// StructuralErrorKind categorizes model validation failures.
type StructuralErrorKind string

const (
	NoInitialState        StructuralErrorKind = "no_initial_state"
	MultipleInitialStates StructuralErrorKind = "multiple_initial_states"
	DuplicateStateName    StructuralErrorKind = "duplicate_state_name"
	UnknownState          StructuralErrorKind = "unknown_state"
	EmptyMachine          StructuralErrorKind = "empty_machine"
)

// StructuralError reports an invalid model. It is fatal to Start() only and
// can never occur mid-run; the graph is immutable once built.
type StructuralError struct {
	Kind    StructuralErrorKind
	Machine string
	Detail  string
}

func (e *StructuralError) Error() string {
	scope := e.Machine
	if scope == "" {
		scope = "root"
	}
	return fmt.Sprintf("invalid model (%s) in machine %q: %s", e.Kind, scope, e.Detail)
}

func (e *StructuralError) simulationError() {}

// ActionOp names the evaluation site of a failed guard or action.
type ActionOp string

const (
	OpGuard      ActionOp = "guard"
	OpEntry      ActionOp = "entry"
	OpDuring     ActionOp = "during"
	OpExit       ActionOp = "exit"
	OpTransition ActionOp = "transition"
)

// ActionError wraps an evaluator failure, tagged with the originating state
// or transition so hosts can point back at the model element.
type ActionError struct {
	Op     ActionOp
	Origin string
	Code   string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s action failed at %q: %v", e.Op, e.Origin, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

func (e *ActionError) simulationError() {}

// RuntimeError reports API misuse. It is returned, never panicked.
type RuntimeError struct {
	Reason string
}

func (e *RuntimeError) Error() string {
	return "runtime error: " + e.Reason
}

func (e *RuntimeError) simulationError() {}

var (
	// ErrNotRunning is returned when step/stop is called outside a running session.
	ErrNotRunning = &RuntimeError{Reason: "engine is not running"}

	// ErrAlreadyRunning is returned when start is called on a running session.
	ErrAlreadyRunning = &RuntimeError{Reason: "engine is already running"}

	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")
)

// IsHalting reports whether err must move the controller to Halted.
// Structural and runtime errors are rejected before any state changes;
// only evaluator failures halt a live session.
func IsHalting(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae)
}
