/*
Package ports defines the driven ports (interfaces) for the Lattice engine.

These interfaces decouple the core state-machine logic from external
implementations, allowing the engine to work with various evaluation
strategies and storage backends.

# Key Interfaces

  - ActionEvaluator: Evaluates user-supplied guard/action code (e.g., Lua).
  - SnapshotStore: Persists and loads session Snapshots.
  - DistributedLocker: Provides distributed locking for concurrent session access.
*/
package ports
