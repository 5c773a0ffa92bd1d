// Package loader compiles a serialized machine description into the immutable
// arena model consumed by the runtime. Validation happens here, once, so the
// engine can assume a structurally sound graph for the whole session.
package loader

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/lattice-run/lattice/pkg/domain"
)

// Load validates the description and builds the arena model. Guard/action
// code is carried verbatim; nothing is evaluated at load time. Nested
// sub_fsm_data blocks are loaded recursively, establishing the exclusive
// state -> sub-machine ownership.
func Load(def *domain.ModelFile) (*domain.Model, error) {
	if def == nil {
		return nil, &domain.StructuralError{Kind: domain.EmptyMachine, Detail: "nil model"}
	}

	model := &domain.Model{Name: def.Name}
	root, err := loadMachine(model, def, rootScopeName(def))
	if err != nil {
		return nil, err
	}
	model.Root = root
	return model, nil
}

// ParseYAML decodes a YAML model file and compiles it.
func ParseYAML(data []byte) (*domain.Model, error) {
	var def domain.ModelFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse model yaml: %w", err)
	}
	return Load(&def)
}

// ParseJSON decodes a JSON model file and compiles it.
func ParseJSON(data []byte) (*domain.Model, error) {
	var def domain.ModelFile
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse model json: %w", err)
	}
	return Load(&def)
}

// Decode converts a generic map (e.g. an HTTP request body already decoded
// into map[string]any) into a ModelFile without a serialization round-trip.
func Decode(raw map[string]any) (*domain.ModelFile, error) {
	var def domain.ModelFile
	cfg := &mapstructure.DecoderConfig{
		Result:           &def,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build model decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	return &def, nil
}

func rootScopeName(def *domain.ModelFile) string {
	if def.Name != "" {
		return def.Name
	}
	return "root"
}

// loadMachine appends one machine scope to the arena and recurses into
// superstates. Returns the new machine's id.
func loadMachine(model *domain.Model, def *domain.ModelFile, scope string) (domain.MachineID, error) {
	if len(def.States) == 0 {
		return 0, &domain.StructuralError{
			Kind:    domain.EmptyMachine,
			Machine: scope,
			Detail:  "machine has no states",
		}
	}

	mid := domain.MachineID(len(model.Machines))
	model.Machines = append(model.Machines, domain.Machine{ID: mid, Name: scope})

	// Pass 1: states. Names must be unique within this scope and exactly one
	// state must be initial.
	seen := make(map[string]struct{}, len(def.States))
	initial := domain.StateID(-1)
	for _, sd := range def.States {
		if sd.Name == "" {
			return 0, &domain.StructuralError{
				Kind:    domain.DuplicateStateName,
				Machine: scope,
				Detail:  "state with empty name",
			}
		}
		if _, dup := seen[sd.Name]; dup {
			return 0, &domain.StructuralError{
				Kind:    domain.DuplicateStateName,
				Machine: scope,
				Detail:  fmt.Sprintf("state %q defined more than once", sd.Name),
			}
		}
		seen[sd.Name] = struct{}{}

		sid := domain.StateID(len(model.States))
		model.States = append(model.States, domain.StateNode{
			ID:         sid,
			Name:       sd.Name,
			IsInitial:  sd.IsInitial,
			IsFinal:    sd.IsFinal,
			Entry:      sd.EntryAction,
			During:     sd.DuringAction,
			Exit:       sd.ExitAction,
			SubMachine: domain.NoMachine,
			Owner:      mid,
		})
		model.Machines[mid].States = append(model.Machines[mid].States, sid)

		if sd.IsInitial {
			if initial >= 0 {
				return 0, &domain.StructuralError{
					Kind:    domain.MultipleInitialStates,
					Machine: scope,
					Detail: fmt.Sprintf("both %q and %q marked initial",
						model.States[initial].Name, sd.Name),
				}
			}
			initial = sid
		}
	}
	if initial < 0 {
		return 0, &domain.StructuralError{
			Kind:    domain.NoInitialState,
			Machine: scope,
			Detail:  "no state marked initial",
		}
	}
	model.Machines[mid].Initial = initial

	// Pass 2: transitions. Endpoints must resolve within this scope; crossing
	// machine boundaries is not supported.
	for _, td := range def.Transitions {
		src, ok := model.StateByName(mid, td.Source)
		if !ok {
			return 0, &domain.StructuralError{
				Kind:    domain.UnknownState,
				Machine: scope,
				Detail:  fmt.Sprintf("transition source %q not in scope", td.Source),
			}
		}
		dst, ok := model.StateByName(mid, td.Target)
		if !ok {
			return 0, &domain.StructuralError{
				Kind:    domain.UnknownState,
				Machine: scope,
				Detail:  fmt.Sprintf("transition target %q not in scope", td.Target),
			}
		}

		tid := domain.TransitionID(len(model.Transitions))
		model.Transitions = append(model.Transitions, domain.TransitionEdge{
			ID:        tid,
			Machine:   mid,
			Source:    src,
			Target:    dst,
			Event:     td.Event,
			Condition: td.Condition,
			Action:    td.Action,
		})
		model.Machines[mid].Transitions = append(model.Machines[mid].Transitions, tid)
	}

	// Pass 3: sub-machines. Done after the scope is complete so arena indices
	// stay contiguous per machine.
	for i, sd := range def.States {
		if !sd.IsSuperstate {
			continue
		}
		if sd.SubFSMData == nil || len(sd.SubFSMData.States) == 0 {
			// A superstate without sub-machine data degrades to a plain
			// state, mirroring the editor's loose output.
			continue
		}
		sub, err := loadMachine(model, sd.SubFSMData, scope+"/"+sd.Name)
		if err != nil {
			return 0, err
		}
		sid := model.Machines[mid].States[i]
		model.States[sid].SubMachine = sub
	}

	return mid, nil
}
