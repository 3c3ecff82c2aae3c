package state

import (
	"sync"
	"time"
)

// Manager manages session state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	// Session identity
	sessionID    string
	playlistID   string
	playlistName string

	// Session lifecycle
	phase     Phase
	startedAt *time.Time
	endedAt   *time.Time
}

// New creates a new state manager.
func New(sessionID string) *Manager {
	return &Manager{
		sessionID: sessionID,
		phase:     PhaseWaiting,
	}
}

// GetPhase returns the current session phase.
func (m *Manager) GetPhase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Activate moves a waiting session to active and records the start time.
// It returns false when the session is not waiting.
func (m *Manager) Activate(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseWaiting {
		return false
	}
	m.phase = PhaseActive
	m.startedAt = &now
	return true
}

// Terminate ends the session and records the end time.
// It returns false when the session had already ended.
func (m *Manager) Terminate(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseTerminated {
		return false
	}
	m.phase = PhaseTerminated
	m.endedAt = &now
	return true
}

// IsActive returns true while the session is processing engine events.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase == PhaseActive
}

// GetSessionID returns the session ID.
func (m *Manager) GetSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// SetPlaylistInfo sets playlist information.
func (m *Manager) SetPlaylistInfo(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlistID = id
	m.playlistName = name
}

// GetTimes returns the start and end times.
func (m *Manager) GetTimes() (*time.Time, *time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startedAt, m.endedAt
}

// BuildInfo returns a snapshot of the session state.
func (m *Manager) BuildInfo() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Info{
		SessionID:    m.sessionID,
		Phase:        m.phase.String(),
		PlaylistID:   m.playlistID,
		PlaylistName: m.playlistName,
		StartedAt:    m.startedAt,
		EndedAt:      m.endedAt,
	}
}
