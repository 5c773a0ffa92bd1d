// Package lattice executes hierarchical finite-state machines: nested
// composite states, guarded transitions with deterministic priority, and
// replayable stepping driven by discrete external events.
//
// The Engine here is the high-level entry point for library consumers. It
// wraps the internal runtime with a default sandboxed Lua evaluator and a
// simplified API; hosts needing session registries or HTTP access build on
// pkg/session and pkg/adapters instead.
package lattice

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lattice-run/lattice/internal/loader"
	"github.com/lattice-run/lattice/internal/logging"
	"github.com/lattice-run/lattice/internal/runtime"
	"github.com/lattice-run/lattice/pkg/adapters/lua"
	"github.com/lattice-run/lattice/pkg/domain"
	"github.com/lattice-run/lattice/pkg/ports"
)

// Engine drives one simulation session.
type Engine struct {
	runtime   *runtime.Engine
	evaluator ports.ActionEvaluator
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithEvaluator injects a custom guard/action evaluator, replacing the
// default Lua sandbox.
func WithEvaluator(evaluator ports.ActionEvaluator) Option {
	return func(e *Engine) {
		e.evaluator = evaluator
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an engine. Each engine is one session; it is not safe for
// concurrent use and callers must serialize Start/Step/Stop/Reset.
func New(opts ...Option) *Engine {
	e := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		e.evaluator = lua.New()
	}
	e.runtime = runtime.NewEngine(e.evaluator,
		runtime.WithLogger(e.logger),
		runtime.WithHooks(e.hooks),
	)
	return e
}

// Start builds the state graph from the description and enters the initial
// configuration, running entry actions outer to inner.
func (e *Engine) Start(ctx context.Context, def *domain.ModelFile) error {
	return e.runtime.Start(ctx, def)
}

// StartFile loads a YAML model file and starts it.
func (e *Engine) StartFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model file: %w", err)
	}
	var def domain.ModelFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("failed to parse model file: %w", err)
	}
	return e.runtime.Start(ctx, &def)
}

// Step advances the machine by one tick in response to an optional event.
func (e *Engine) Step(ctx context.Context, eventName string, payload map[string]any) (*domain.StepRecord, error) {
	var event *domain.Event
	if eventName != "" {
		event = &domain.Event{Name: eventName, Payload: payload}
	}
	return e.runtime.Step(ctx, event)
}

// Stop discards runtime state without running exit actions.
func (e *Engine) Stop() error {
	return e.runtime.Stop()
}

// Reset wipes the workspace and re-enters the initial configuration of the
// same model.
func (e *Engine) Reset(ctx context.Context) error {
	return e.runtime.Reset(ctx)
}

// ActivePath returns the root-to-leaf names of the active configuration.
func (e *Engine) ActivePath() []string {
	return e.runtime.ActivePath()
}

// Status returns the session lifecycle phase.
func (e *Engine) Status() domain.SessionStatus {
	return e.runtime.Status()
}

// LastError returns the most recent failure, or nil.
func (e *Engine) LastError() error {
	return e.runtime.LastError()
}

// LastRecord returns the structured record of the most recent start or step.
func (e *Engine) LastRecord() *domain.StepRecord {
	return e.runtime.LastRecord()
}

// Variables returns a copy of the session workspace.
func (e *Engine) Variables() map[string]any {
	return e.runtime.Variables()
}

// PossibleEvents returns the sorted event names currently able to trigger a
// transition at any level of the active configuration.
func (e *Engine) PossibleEvents() []string {
	return e.runtime.PossibleEvents()
}

// Snapshot captures the externally visible session state.
func (e *Engine) Snapshot() *domain.Snapshot {
	return e.runtime.Snapshot()
}

// Validate compiles the description without starting a session, reporting the
// first structural problem found.
func Validate(def *domain.ModelFile) error {
	_, err := loader.Load(def)
	return err
}
