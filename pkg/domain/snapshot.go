package domain

import "time"

// SessionStatus defines the lifecycle phase of an engine session.
type SessionStatus string

const (
	StatusUninitialized SessionStatus = "uninitialized"
	StatusRunning       SessionStatus = "running"
	StatusHalted        SessionStatus = "halted"
)

// Snapshot captures the externally visible runtime state of a session. It is
// what the session layer persists between steps, enabling inspection of a
// halted session and host-side resume bookkeeping.
type Snapshot struct {
	Path      []string       `json:"path"`
	Vars      map[string]any `json:"vars,omitempty"`
	Status    SessionStatus  `json:"status"`
	LastError string         `json:"last_error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
