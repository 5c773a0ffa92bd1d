// Package lua provides the default ActionEvaluator: a sandboxed Lua
// interpreter whose globals mirror the session workspace. The engine core
// never touches Lua; swapping this adapter out swaps the action language.
package lua

import (
	"context"
	"fmt"

	golua "github.com/Shopify/go-lua"

	"github.com/lattice-run/lattice/pkg/domain"
)

// eventGlobal is the reserved name exposing the triggering event to scripts.
const eventGlobal = "event"

// Evaluator runs guard/action code in one persistent Lua state per session.
// Workspace variables are plain Lua globals: actions write `x = 1`, guards
// read `x > 0`. Before every evaluation the globals are reconciled with the
// engine's Context, and after every action the Context is rebuilt from the
// globals, so the Context stays the single source of truth.
//
// Not safe for concurrent use; the engine serializes calls per session.
type Evaluator struct {
	l    *golua.State
	base map[string]struct{}
}

// New creates a sandboxed evaluator. Only the base, math, string and table
// libraries are opened; file and OS access never reach user code, and the
// chunk loaders are removed from the base library.
func New() *Evaluator {
	l := golua.NewState()
	golua.Require(l, "_G", golua.BaseOpen, true)
	l.Pop(1)
	golua.Require(l, "math", golua.MathOpen, true)
	l.Pop(1)
	golua.Require(l, "string", golua.StringOpen, true)
	l.Pop(1)
	golua.Require(l, "table", golua.TableOpen, true)
	l.Pop(1)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		l.PushNil()
		l.SetGlobal(name)
	}

	e := &Evaluator{l: l}
	e.base = e.globalNames()
	return e
}

// Execute runs action code. Variables the code creates or modifies persist in
// scope.Vars; variables it sets to nil are removed.
func (e *Evaluator) Execute(ctx context.Context, code string, scope *domain.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.reconcile(scope)
	if err := golua.DoString(e.l, code); err != nil {
		e.scrub(scope)
		return fmt.Errorf("lua action: %w", err)
	}
	e.exportGlobals(scope)
	return nil
}

// EvaluateGuard evaluates a boolean expression. Guards are read-only: any
// globals the expression leaves behind are discarded afterwards.
func (e *Evaluator) EvaluateGuard(ctx context.Context, code string, scope *domain.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.reconcile(scope)
	if err := golua.LoadString(e.l, "return ("+code+")"); err != nil {
		return false, fmt.Errorf("lua guard: %w", err)
	}
	if err := e.l.ProtectedCall(0, 1, 0); err != nil {
		e.scrub(scope)
		return false, fmt.Errorf("lua guard: %w", err)
	}
	result := e.l.ToBoolean(-1)
	e.l.Pop(1)
	e.scrub(scope)
	return result, nil
}

// reconcile makes the Lua globals exactly mirror the workspace plus the
// current event: stale globals from earlier evaluations are dropped.
func (e *Evaluator) reconcile(scope *domain.Context) {
	e.scrub(scope)
	for name, value := range scope.Vars {
		e.pushValue(value)
		e.l.SetGlobal(name)
	}
	e.pushEvent(scope.Event)
	e.l.SetGlobal(eventGlobal)
}

// scrub resets every non-library global to its workspace value, or removes it
// if the workspace has no such variable.
func (e *Evaluator) scrub(scope *domain.Context) {
	for _, name := range e.userGlobals() {
		if v, ok := scope.Vars[name]; ok {
			e.pushValue(v)
		} else {
			e.l.PushNil()
		}
		e.l.SetGlobal(name)
	}
}

// exportGlobals rebuilds scope.Vars from the current user globals.
func (e *Evaluator) exportGlobals(scope *domain.Context) {
	collected := make(map[string]any)
	e.l.PushGlobalTable()
	e.l.PushNil()
	for e.l.Next(-2) {
		if name, ok := e.l.ToString(-2); ok && name != eventGlobal {
			if _, library := e.base[name]; !library {
				if v, ok := e.toGoValue(-1, 0); ok {
					collected[name] = v
				}
			}
		}
		e.l.Pop(1)
	}
	e.l.Pop(1)

	for k := range scope.Vars {
		delete(scope.Vars, k)
	}
	for k, v := range collected {
		scope.Vars[k] = v
	}
}

// userGlobals lists global names that are not part of the opened libraries.
func (e *Evaluator) userGlobals() []string {
	var names []string
	e.l.PushGlobalTable()
	e.l.PushNil()
	for e.l.Next(-2) {
		if name, ok := e.l.ToString(-2); ok && name != eventGlobal {
			if _, library := e.base[name]; !library {
				names = append(names, name)
			}
		}
		e.l.Pop(1)
	}
	e.l.Pop(1)
	return names
}

func (e *Evaluator) globalNames() map[string]struct{} {
	names := make(map[string]struct{})
	e.l.PushGlobalTable()
	e.l.PushNil()
	for e.l.Next(-2) {
		if name, ok := e.l.ToString(-2); ok {
			names[name] = struct{}{}
		}
		e.l.Pop(1)
	}
	e.l.Pop(1)
	return names
}

func (e *Evaluator) pushEvent(ev *domain.Event) {
	if ev == nil {
		e.l.PushNil()
		return
	}
	e.l.NewTable()
	e.l.PushString(ev.Name)
	e.l.SetField(-2, "name")
	if ev.Payload != nil {
		e.pushValue(map[string]any(ev.Payload))
		e.l.SetField(-2, "payload")
	}
}

// pushValue converts a Go value onto the Lua stack. Unsupported types are
// pushed as nil.
func (e *Evaluator) pushValue(v any) {
	switch val := v.(type) {
	case nil:
		e.l.PushNil()
	case bool:
		e.l.PushBoolean(val)
	case string:
		e.l.PushString(val)
	case int:
		e.l.PushNumber(float64(val))
	case int64:
		e.l.PushNumber(float64(val))
	case float32:
		e.l.PushNumber(float64(val))
	case float64:
		e.l.PushNumber(val)
	case map[string]any:
		e.l.NewTable()
		for k, item := range val {
			e.pushValue(item)
			e.l.SetField(-2, k)
		}
	case []any:
		e.l.NewTable()
		for i, item := range val {
			e.pushValue(item)
			e.l.RawSetInt(-2, i+1)
		}
	default:
		e.l.PushNil()
	}
}

const maxTableDepth = 8

// toGoValue converts the Lua value at the given stack index back to Go.
// Functions, userdata and overly deep tables report ok=false and are skipped.
func (e *Evaluator) toGoValue(index int, depth int) (any, bool) {
	switch e.l.TypeOf(index) {
	case golua.TypeNil:
		return nil, true
	case golua.TypeBoolean:
		return e.l.ToBoolean(index), true
	case golua.TypeNumber:
		n, _ := e.l.ToNumber(index)
		return n, true
	case golua.TypeString:
		s, _ := e.l.ToString(index)
		return s, true
	case golua.TypeTable:
		if depth >= maxTableDepth {
			return nil, false
		}
		return e.tableToGo(index, depth)
	default:
		return nil, false
	}
}

// tableToGo materializes a Lua table as []any when its keys form the dense
// sequence 1..n, and map[string]any otherwise.
func (e *Evaluator) tableToGo(index int, depth int) (any, bool) {
	asMap := make(map[string]any)
	var asList []any
	dense := true

	abs := e.l.AbsIndex(index)
	e.l.PushNil()
	for e.l.Next(abs) {
		switch e.l.TypeOf(-2) {
		case golua.TypeNumber:
			n, _ := e.l.ToNumber(-2)
			i := int(n)
			if float64(i) != n || i != len(asList)+1 {
				dense = false
			}
			if v, ok := e.toGoValue(-1, depth+1); ok {
				asList = append(asList, v)
				asMap[fmt.Sprintf("%v", n)] = v
			}
		case golua.TypeString:
			dense = false
			k, _ := e.l.ToString(-2)
			if v, ok := e.toGoValue(-1, depth+1); ok {
				asMap[k] = v
			}
		default:
			dense = false
		}
		e.l.Pop(1)
	}

	if dense {
		return asList, true
	}
	return asMap, true
}
