package domain

// ModelFile is the serialized machine description produced by the editor or
// storage layer. It is recursive: a superstate carries the full description of
// its sub-machine in SubFSMData.
type ModelFile struct {
	Name        string          `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	States      []StateDef      `json:"states" yaml:"states" mapstructure:"states"`
	Transitions []TransitionDef `json:"transitions" yaml:"transitions" mapstructure:"transitions"`

	// Comments are editor-only annotations and are ignored by the engine.
	Comments []any `json:"comments,omitempty" yaml:"comments,omitempty" mapstructure:"comments"`
}

// StateDef describes a single state in the input model.
type StateDef struct {
	Name         string `json:"name" yaml:"name" mapstructure:"name"`
	IsInitial    bool   `json:"is_initial,omitempty" yaml:"is_initial,omitempty" mapstructure:"is_initial"`
	IsFinal      bool   `json:"is_final,omitempty" yaml:"is_final,omitempty" mapstructure:"is_final"`
	EntryAction  string `json:"entry_action,omitempty" yaml:"entry_action,omitempty" mapstructure:"entry_action"`
	DuringAction string `json:"during_action,omitempty" yaml:"during_action,omitempty" mapstructure:"during_action"`
	ExitAction   string `json:"exit_action,omitempty" yaml:"exit_action,omitempty" mapstructure:"exit_action"`

	IsSuperstate bool       `json:"is_superstate,omitempty" yaml:"is_superstate,omitempty" mapstructure:"is_superstate"`
	SubFSMData   *ModelFile `json:"sub_fsm_data,omitempty" yaml:"sub_fsm_data,omitempty" mapstructure:"sub_fsm_data"`
}

// TransitionDef describes a single transition in the input model.
// An empty Event marks an eventless ("always") transition.
type TransitionDef struct {
	Source    string `json:"source" yaml:"source" mapstructure:"source"`
	Target    string `json:"target" yaml:"target" mapstructure:"target"`
	Event     string `json:"event,omitempty" yaml:"event,omitempty" mapstructure:"event"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`
	Action    string `json:"action,omitempty" yaml:"action,omitempty" mapstructure:"action"`
}
