package jobs

import (
	"errors"
	"sync"

	"whisperdesk/internal/domain"
)

// ErrRunInProgress is returned when starting while a run is active.
var ErrRunInProgress = errors.New("transcription already in progress")

// Manager tracks the single allowed run and its state transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{State: domain.RunStateIdle},
	}
}

// Start moves an idle manager to running under runID.
func (m *Manager) Start(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isValidTransition(m.current.State, domain.RunStateRunning) {
		return ErrRunInProgress
	}
	m.current = domain.Run{ID: runID, State: domain.RunStateRunning}
	return nil
}

// RequestStop moves running to stopping. It reports whether the transition
// happened; idle and stopping are left unchanged.
func (m *Manager) RequestStop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.State != domain.RunStateRunning {
		return false
	}
	m.current.State = domain.RunStateStopping
	return true
}

// Finish returns the manager to idle and reports the run as it was just
// before the reset.
func (m *Manager) Finish() domain.Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	last := m.current
	m.current = domain.Run{State: domain.RunStateIdle}
	return last
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// State returns the current lifecycle state.
func (m *Manager) State() domain.RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.State
}

// IsActive reports whether a run is running or stopping.
func (m *Manager) IsActive() bool {
	return m.State() != domain.RunStateIdle
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.RunState) bool {
	switch from {
	case domain.RunStateIdle:
		return to == domain.RunStateRunning
	case domain.RunStateRunning:
		return to == domain.RunStateStopping || to == domain.RunStateIdle
	case domain.RunStateStopping:
		return to == domain.RunStateIdle
	default:
		return false
	}
}
