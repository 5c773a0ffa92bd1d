package runtime_test

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/lattice-run/lattice/pkg/domain"
)

// scriptedEvaluator is a deterministic stand-in for a real script engine.
// Action codes are tiny commands: "k=v" assigns a workspace variable
// (bool/int/string), "fail" returns an error, anything else is a recorded
// no-op. Guard codes: "true", "false", "fail", or a variable name that is
// truthy when set to true. Every call is appended to calls so tests can
// assert ordering.
type scriptedEvaluator struct {
	calls []string
}

var errScripted = errors.New("scripted failure")

func (f *scriptedEvaluator) Execute(_ context.Context, code string, scope *domain.Context) error {
	f.calls = append(f.calls, code)
	if strings.HasPrefix(code, "fail") {
		return errScripted
	}
	if name, value, ok := strings.Cut(code, "="); ok {
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		switch {
		case value == "true":
			scope.Set(name, true)
		case value == "false":
			scope.Set(name, false)
		default:
			if n, err := strconv.Atoi(value); err == nil {
				scope.Set(name, n)
			} else {
				scope.Set(name, value)
			}
		}
	}
	return nil
}

func (f *scriptedEvaluator) EvaluateGuard(_ context.Context, code string, scope *domain.Context) (bool, error) {
	f.calls = append(f.calls, "guard:"+code)
	switch code {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "fail":
		return false, errScripted
	}
	v, _ := scope.Get(code)
	return v == true, nil
}

func (f *scriptedEvaluator) reset() {
	f.calls = nil
}
