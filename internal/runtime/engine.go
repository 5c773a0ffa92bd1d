// Package runtime implements the hierarchical state-machine execution core:
// the active-configuration tracker, the transition resolver and the step
// controller. It is single-threaded by contract; callers serialize access.
package runtime

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/lattice-run/lattice/internal/loader"
	"github.com/lattice-run/lattice/internal/logging"
	"github.com/lattice-run/lattice/pkg/domain"
	"github.com/lattice-run/lattice/pkg/ports"
)

// Engine advances an active-state configuration step-by-step in response to
// discrete external events. One Engine is one session: the workspace, the
// configuration and the halt flag all live and die together.
//
// Session lifecycle: Uninitialized -> Running -> Halted. Halted is left only
// through Stop or Reset. A step never suspends; it runs to completion within
// one call.
type Engine struct {
	evaluator ports.ActionEvaluator
	logger    *slog.Logger
	hooks     domain.LifecycleHooks

	model  *domain.Model
	config *activeConfig
	scope  *domain.Context

	status     domain.SessionStatus
	lastErr    error
	lastRecord *domain.StepRecord
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHooks registers observability callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// NewEngine creates an engine bound to the given evaluator.
func NewEngine(evaluator ports.ActionEvaluator, opts ...Option) *Engine {
	e := &Engine{
		evaluator: evaluator,
		logger:    logging.NewNop(),
		status:    domain.StatusUninitialized,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start builds the graph from the description, initializes the active
// configuration by descending into initial states, and runs entry actions for
// the whole initial path outer-to-inner.
func (e *Engine) Start(ctx context.Context, def *domain.ModelFile) error {
	if e.status == domain.StatusRunning {
		e.lastErr = domain.ErrAlreadyRunning
		return domain.ErrAlreadyRunning
	}

	model, err := loader.Load(def)
	if err != nil {
		e.lastErr = err
		return err
	}

	e.model = model
	return e.begin(ctx)
}

// begin (re)enters the initial configuration of the already compiled model.
func (e *Engine) begin(ctx context.Context) error {
	e.scope = domain.NewContext()
	e.config = newActiveConfig(e.model)
	e.config.enterInitial(e.model.Root)
	e.status = domain.StatusRunning
	e.lastErr = nil

	record := &domain.StepRecord{}
	e.logger.Info("session started", "model", e.model.Name, "path", e.config.path())

	for level := 0; level < e.config.depth(); level++ {
		if err := e.enterState(ctx, e.config.at(level), record); err != nil {
			e.halt(err, record)
			return err
		}
	}

	e.finishRecord(ctx, record)
	return nil
}

// Step advances the machine by one tick: during actions outer-to-inner, one
// explicit-event transition at most, then one eventless transition at most.
func (e *Engine) Step(ctx context.Context, event *domain.Event) (*domain.StepRecord, error) {
	if e.status != domain.StatusRunning {
		e.lastErr = domain.ErrNotRunning
		return nil, domain.ErrNotRunning
	}

	record := &domain.StepRecord{Event: event}
	e.scope.Event = event

	// (a) during actions for every active state, outer to inner.
	for level := 0; level < e.config.depth(); level++ {
		state := e.model.State(e.config.at(level))
		if err := e.runAction(ctx, domain.OpDuring, state.Name, state.During, record); err != nil {
			e.halt(err, record)
			return record, err
		}
	}

	// Sub-machine completion is observable before resolution, so an outer
	// guard can react to it within the same step.
	e.noteSubCompletion()

	// (b)+(c) explicit-event pass.
	if event != nil && event.Name != "" {
		t, level, err := e.resolve(ctx, event.Name)
		if err != nil {
			e.halt(err, record)
			return record, err
		}
		if t != nil {
			if err := e.fire(ctx, t, level, record); err != nil {
				e.halt(err, record)
				return record, err
			}
			record.TransitionFired = e.transitionLabel(t)
		} else {
			e.logger.Debug("event had no effect", "event", event.Name, "path", e.config.path())
		}
	}

	// (d) at most one eventless transition per step, guaranteeing termination.
	t, level, err := e.resolve(ctx, "")
	if err != nil {
		e.halt(err, record)
		return record, err
	}
	if t != nil {
		if err := e.fire(ctx, t, level, record); err != nil {
			e.halt(err, record)
			return record, err
		}
		record.EventlessFired = e.transitionLabel(t)
	}

	e.finishRecord(ctx, record)
	return record, nil
}

// fire executes one transition: exit actions inner-to-outer up to the
// transition's level, the transition's own action, then the configuration
// swap and entry actions outer-to-inner down to the new leaf.
//
// The configuration is committed only after every exit action and the
// transition action succeed; a failure before the commit leaves the active
// path exactly as it was before the step.
func (e *Engine) fire(ctx context.Context, t *domain.TransitionEdge, level int, record *domain.StepRecord) error {
	for i := e.config.depth() - 1; i >= level; i-- {
		if err := e.exitState(ctx, e.config.at(i), record); err != nil {
			return err
		}
	}

	if err := e.runAction(ctx, domain.OpTransition, e.transitionLabel(t), t.Action, record); err != nil {
		return err
	}

	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			Timestamp: time.Now(),
			Event:     t.Event,
			Source:    e.model.State(t.Source).Name,
			Target:    e.model.State(t.Target).Name,
			Eventless: t.Eventless(),
		})
	}

	e.config.replaceFrom(level, t.Target)
	e.logger.Debug("transition fired", "transition", e.transitionLabel(t), "path", e.config.path())

	for i := level; i < e.config.depth(); i++ {
		if err := e.enterState(ctx, e.config.at(i), record); err != nil {
			return err
		}
	}
	return nil
}

// enterState runs one state's entry action and observability hook.
func (e *Engine) enterState(ctx context.Context, sid domain.StateID, record *domain.StepRecord) error {
	state := e.model.State(sid)
	if err := e.runAction(ctx, domain.OpEntry, state.Name, state.Entry, record); err != nil {
		return err
	}
	if e.hooks.OnStateEnter != nil {
		e.hooks.OnStateEnter(ctx, &domain.StateEvent{
			Timestamp: time.Now(),
			State:     state.Name,
			Machine:   e.model.Machine(state.Owner).Name,
		})
	}
	return nil
}

// exitState runs one state's exit action and observability hook.
func (e *Engine) exitState(ctx context.Context, sid domain.StateID, record *domain.StepRecord) error {
	state := e.model.State(sid)
	if err := e.runAction(ctx, domain.OpExit, state.Name, state.Exit, record); err != nil {
		return err
	}
	if e.hooks.OnStateExit != nil {
		e.hooks.OnStateExit(ctx, &domain.StateEvent{
			Timestamp: time.Now(),
			State:     state.Name,
			Machine:   e.model.Machine(state.Owner).Name,
		})
	}
	return nil
}

// runAction executes one piece of user code through the evaluator. An empty
// code string is a no-op; a failure is wrapped with its origin so the host
// can point at the offending model element.
func (e *Engine) runAction(ctx context.Context, op domain.ActionOp, origin, code string, record *domain.StepRecord) error {
	if code == "" {
		return nil
	}
	if err := e.evaluator.Execute(ctx, code, e.scope); err != nil {
		return &domain.ActionError{Op: op, Origin: origin, Code: code, Err: err}
	}
	record.ActionsRun = append(record.ActionsRun, string(op)+":"+origin)
	e.logger.Debug("action executed", "op", string(op), "origin", origin)
	return nil
}

// noteSubCompletion flags a superstate whose sub-machine has reached a final
// state by setting "<superstate>_sub_completed" in the workspace, so outer
// guards can observe completion.
func (e *Engine) noteSubCompletion() {
	if e.config.depth() < 2 {
		return
	}
	leaf := e.model.State(e.config.leaf())
	if !leaf.IsFinal {
		return
	}
	parent := e.model.State(e.config.at(e.config.depth() - 2))
	key := parent.Name + "_sub_completed"
	if done, _ := e.scope.Get(key); done != true {
		e.scope.Set(key, true)
		e.logger.Debug("sub-machine completed", "superstate", parent.Name, "final", leaf.Name)
	}
}

// halt moves the controller to Halted, preserving the last-good configuration
// for inspection. Halting is not a transition: no exit actions run.
func (e *Engine) halt(err error, record *domain.StepRecord) {
	e.status = domain.StatusHalted
	e.lastErr = err
	record.Errors = append(record.Errors, err.Error())
	e.logger.Error("simulation halted", "err", err, "path", e.config.path())
	e.finishRecord(context.Background(), record)
}

func (e *Engine) finishRecord(ctx context.Context, record *domain.StepRecord) {
	record.Path = e.config.path()
	e.lastRecord = record
	if e.hooks.OnStep != nil {
		e.hooks.OnStep(ctx, record)
	}
}

// Stop discards runtime state without running exit actions; halting the
// session is deliberately not a transition. The compiled model is kept so the
// session can be reset.
func (e *Engine) Stop() error {
	if e.status == domain.StatusUninitialized {
		e.lastErr = domain.ErrNotRunning
		return domain.ErrNotRunning
	}
	e.status = domain.StatusUninitialized
	e.config.clear()
	e.scope.Clear()
	e.logger.Info("session stopped", "model", e.model.Name)
	return nil
}

// Reset is stop followed by start on the same model: the workspace is wiped
// and the configuration re-enters the initial descent. The graph itself is
// immutable and reused.
func (e *Engine) Reset(ctx context.Context) error {
	if e.model == nil {
		e.lastErr = domain.ErrNotRunning
		return domain.ErrNotRunning
	}
	e.logger.Info("session reset", "model", e.model.Name)
	return e.begin(ctx)
}

// ActivePath returns the root-to-leaf names of the active configuration.
func (e *Engine) ActivePath() []string {
	if e.config == nil {
		return nil
	}
	return e.config.path()
}

// Status returns the session lifecycle phase.
func (e *Engine) Status() domain.SessionStatus {
	return e.status
}

// LastError returns the most recent failure, or nil.
func (e *Engine) LastError() error {
	return e.lastErr
}

// LastRecord returns the record of the most recent start/step, or nil.
func (e *Engine) LastRecord() *domain.StepRecord {
	return e.lastRecord
}

// Variables returns a copy of the session workspace.
func (e *Engine) Variables() map[string]any {
	if e.scope == nil {
		return nil
	}
	return e.scope.Snapshot()
}

// PossibleEvents returns the sorted set of event names on transitions whose
// source is active at any level of the configuration.
func (e *Engine) PossibleEvents() []string {
	if e.status != domain.StatusRunning {
		return nil
	}
	set := make(map[string]struct{})
	for level := 0; level < e.config.depth(); level++ {
		current := e.config.at(level)
		machine := e.model.Machine(e.model.State(current).Owner)
		for _, tid := range machine.Transitions {
			t := e.model.Transition(tid)
			if t.Source == current && !t.Eventless() {
				set[t.Event] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Snapshot captures the externally visible session state.
func (e *Engine) Snapshot() *domain.Snapshot {
	snap := &domain.Snapshot{
		Path:      e.ActivePath(),
		Vars:      e.Variables(),
		Status:    e.status,
		Timestamp: time.Now(),
	}
	if e.lastErr != nil {
		snap.LastError = e.lastErr.Error()
	}
	return snap
}
