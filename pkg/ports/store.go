package ports

import (
	"context"

	"github.com/lattice-run/lattice/pkg/domain"
)

// SnapshotStore defines the interface for persisting session snapshots.
// The engine itself is storage-agnostic; the session layer writes a snapshot
// after every successful state change so halted sessions stay inspectable.
type SnapshotStore interface {
	// Save persists the snapshot for a given session ID.
	Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error

	// Load retrieves the snapshot for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Snapshot, error)

	// Delete removes the snapshot for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
