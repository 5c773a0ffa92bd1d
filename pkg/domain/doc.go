/*
Package domain contains the core domain models for the Lattice engine.

It defines the fundamental entities of a hierarchical finite-state machine:
states (including nested composite superstates), transitions, the compiled
immutable model graph, and the runtime artifacts produced while stepping it.
This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - ModelFile: The serialized machine description consumed from the editor or
    storage layer, recursive per nesting level.
  - Model: The compiled, immutable arena of StateNode/Machine/TransitionEdge
    records addressed by integer ids.
  - Context: The persistent variable workspace shared by all guard/action
    evaluations in one session, plus the triggering event.
  - StepRecord: A structured per-step account of what fired and what ran,
    intended for host-side logging.
  - SimulationError: The single error family crossing the public API
    (StructuralError, ActionError, RuntimeError).
*/
package domain
