package domain

// MachineID addresses a Machine record in the Model arena.
type MachineID int

// StateID addresses a StateNode record in the Model arena.
type StateID int

// TransitionID addresses a TransitionEdge record in the Model arena.
type TransitionID int

// NoMachine marks a state without a nested sub-machine.
const NoMachine MachineID = -1

// StateNode is a single compiled state. A state with SubMachine != NoMachine
// is a superstate; it exclusively owns that sub-machine.
type StateNode struct {
	ID        StateID
	Name      string
	IsInitial bool
	IsFinal   bool

	// Entry, During and Exit hold user-supplied action code verbatim.
	// The engine never parses them; evaluation is delegated to the
	// injected ActionEvaluator.
	Entry  string
	During string
	Exit   string

	SubMachine MachineID
	Owner      MachineID
}

// IsSuperstate reports whether the state owns a nested machine.
func (s *StateNode) IsSuperstate() bool {
	return s.SubMachine != NoMachine
}

// Machine is one scope of the hierarchy. It holds index lists into the Model
// arena rather than owning pointers, which keeps the recursive ownership
// (state owns machine owns states...) flat and serializable.
type Machine struct {
	ID          MachineID
	Name        string
	States      []StateID
	Transitions []TransitionID
	Initial     StateID
}

// TransitionEdge is a compiled transition. Source and Target always belong to
// the same machine scope. An empty Event marks an eventless transition.
type TransitionEdge struct {
	ID        TransitionID
	Machine   MachineID
	Source    StateID
	Target    StateID
	Event     string
	Condition string
	Action    string
}

// Eventless reports whether the transition has no triggering event.
func (t *TransitionEdge) Eventless() bool {
	return t.Event == ""
}

// Model is the compiled, immutable state graph. It is built once per session
// by the loader and never mutated afterwards.
type Model struct {
	Name        string
	Machines    []Machine
	States      []StateNode
	Transitions []TransitionEdge
	Root        MachineID
}

// State returns the arena record for the given id.
func (m *Model) State(id StateID) *StateNode {
	return &m.States[id]
}

// Machine returns the arena record for the given id.
func (m *Model) Machine(id MachineID) *Machine {
	return &m.Machines[id]
}

// Transition returns the arena record for the given id.
func (m *Model) Transition(id TransitionID) *TransitionEdge {
	return &m.Transitions[id]
}

// StateByName resolves a name within one machine scope.
// Names are only unique per scope, never globally.
func (m *Model) StateByName(machine MachineID, name string) (StateID, bool) {
	for _, sid := range m.Machines[machine].States {
		if m.States[sid].Name == name {
			return sid, true
		}
	}
	return 0, false
}
