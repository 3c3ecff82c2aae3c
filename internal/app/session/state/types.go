// Package state provides session lifecycle state.
package state

import "time"

// Phase represents the session lifecycle phase.
type Phase int

const (
	PhaseWaiting    Phase = iota // Created, not started
	PhaseActive                  // Engine events are being processed
	PhaseTerminated              // Session has ended
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseActive:
		return "active"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Info is a snapshot of session identity and lifecycle.
type Info struct {
	SessionID    string     `json:"session_id"`
	Phase        string     `json:"phase"`
	PlaylistID   string     `json:"playlist_id,omitempty"`
	PlaylistName string     `json:"playlist_name,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}
