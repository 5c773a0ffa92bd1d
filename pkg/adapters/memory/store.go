// Package memory provides an in-process SnapshotStore, primarily for tests
// and single-instance deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/lattice-run/lattice/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Snapshot),
	}
}

// Save persists the snapshot in memory.
func (s *Store) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copySnapshot(snap)
	return nil
}

// Load retrieves the snapshot from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySnapshot(snap), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns stored session IDs in deterministic order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}

// copySnapshot isolates stored data from caller mutation, mirroring what a
// serialization round-trip would do.
func copySnapshot(snap *domain.Snapshot) *domain.Snapshot {
	out := *snap
	out.Path = append([]string(nil), snap.Path...)
	if snap.Vars != nil {
		out.Vars = make(map[string]any, len(snap.Vars))
		for k, v := range snap.Vars {
			out.Vars[k] = v
		}
	}
	return &out
}
