package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lattice-run/lattice/internal/logging"
	"github.com/lattice-run/lattice/internal/runtime"
	"github.com/lattice-run/lattice/pkg/domain"
	"github.com/lattice-run/lattice/pkg/ports"
)

// EngineFactory builds a fresh engine for a new session. Each session owns
// its engine (and therefore its evaluator and workspace) exclusively.
type EngineFactory func() *runtime.Engine

// NewEngineFactory builds sessions around the given evaluator constructor.
// Each session gets its own evaluator instance, so interpreter state is never
// shared across workspaces. Hooks are shared; collectors aggregate across
// sessions.
func NewEngineFactory(newEvaluator func() ports.ActionEvaluator, hooks domain.LifecycleHooks, logger *slog.Logger) EngineFactory {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func() *runtime.Engine {
		return runtime.NewEngine(newEvaluator(),
			runtime.WithHooks(hooks),
			runtime.WithLogger(logger),
		)
	}
}

// lockEntry holds a session mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates concurrent access to simulation sessions. The engine
// core is deliberately not thread-safe; the manager is the layer that
// serializes calls per session, using reference-counted local mutexes and an
// optional distributed locker for multi-replica deployments.
type Manager struct {
	store   ports.SnapshotStore
	factory EngineFactory

	mu      sync.Mutex
	engines map[string]*runtime.Engine
	locks   map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager over the given store and engine factory.
func NewManager(store ports.SnapshotStore, factory EngineFactory, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		factory: factory,
		engines: make(map[string]*runtime.Engine),
		locks:   make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session for the given model and returns its ID along
// with the initial step record. The session snapshot is persisted even when
// entry actions halt the fresh session, so the failure stays inspectable.
func (m *Manager) Create(ctx context.Context, def *domain.ModelFile) (string, *domain.StepRecord, error) {
	id := uuid.NewString()
	engine := m.factory()

	var record *domain.StepRecord
	var startErr error
	err := m.withLock(ctx, id, func(ctx context.Context) error {
		startErr = engine.Start(ctx, def)
		record = engine.LastRecord()
		if startErr != nil && !domain.IsHalting(startErr) {
			// Structural rejection: nothing to register or persist.
			return startErr
		}

		// A halted-on-entry session is still registered so the host can
		// inspect its last-good configuration and error.
		m.mu.Lock()
		m.engines[id] = engine
		m.mu.Unlock()

		if persistErr := m.persist(ctx, id, engine); persistErr != nil {
			m.logger.Warn("failed to persist session snapshot",
				"session_id", id,
				"err", persistErr,
			)
		}
		return startErr
	})
	if err != nil && !domain.IsHalting(err) {
		return "", nil, err
	}
	return id, record, err
}

// Step advances a session by one tick.
func (m *Manager) Step(ctx context.Context, id string, event *domain.Event) (*domain.StepRecord, error) {
	engine, ok := m.engine(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	var record *domain.StepRecord
	err := m.withLock(ctx, id, func(ctx context.Context) error {
		var stepErr error
		record, stepErr = engine.Step(ctx, event)
		if persistErr := m.persist(ctx, id, engine); persistErr != nil {
			m.logger.Warn("failed to persist session snapshot",
				"session_id", id,
				"err", persistErr,
			)
		}
		return stepErr
	})
	return record, err
}

// Reset wipes a session's workspace and re-enters its initial configuration.
func (m *Manager) Reset(ctx context.Context, id string) (*domain.StepRecord, error) {
	engine, ok := m.engine(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	var record *domain.StepRecord
	err := m.withLock(ctx, id, func(ctx context.Context) error {
		resetErr := engine.Reset(ctx)
		record = engine.LastRecord()
		if persistErr := m.persist(ctx, id, engine); persistErr != nil {
			m.logger.Warn("failed to persist session snapshot",
				"session_id", id,
				"err", persistErr,
			)
		}
		return resetErr
	})
	return record, err
}

// Snapshot returns the current state of a session. Sessions no longer live in
// this process fall back to the store.
func (m *Manager) Snapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	if engine, ok := m.engine(id); ok {
		var snap *domain.Snapshot
		err := m.withLock(ctx, id, func(context.Context) error {
			snap = engine.Snapshot()
			return nil
		})
		return snap, err
	}
	return m.store.Load(ctx, id)
}

// PossibleEvents lists the event names currently able to trigger a transition.
func (m *Manager) PossibleEvents(ctx context.Context, id string) ([]string, error) {
	engine, ok := m.engine(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	var events []string
	err := m.withLock(ctx, id, func(context.Context) error {
		events = engine.PossibleEvents()
		return nil
	})
	return events, err
}

// Delete stops a session and removes it from the registry and the store.
// Stopping discards runtime state without running exit actions.
func (m *Manager) Delete(ctx context.Context, id string) error {
	engine, ok := m.engine(id)
	if !ok {
		return domain.ErrSessionNotFound
	}

	return m.withLock(ctx, id, func(ctx context.Context) error {
		if err := engine.Stop(); err != nil && err != domain.ErrNotRunning {
			return err
		}
		m.mu.Lock()
		delete(m.engines, id)
		m.mu.Unlock()
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

func (m *Manager) persist(ctx context.Context, id string, engine *runtime.Engine) error {
	return m.store.Save(ctx, id, engine.Snapshot())
}

func (m *Manager) engine(id string) (*runtime.Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	engine, ok := m.engines[id]
	return engine, ok
}

// acquire gets or creates a lock entry and increments its reference count.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and garbage-collects unused locks.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// withLock executes fn while holding the session's local mutex and, if
// configured, the distributed lock.
func (m *Manager) withLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
