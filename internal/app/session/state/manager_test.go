package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManager_Lifecycle(t *testing.T) {
	m := New("session-1")
	assert.Equal(t, PhaseWaiting, m.GetPhase())
	assert.False(t, m.IsActive())

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.True(t, m.Activate(start))
	assert.False(t, m.Activate(start), "second activation is refused")
	assert.True(t, m.IsActive())

	end := start.Add(time.Hour)
	assert.True(t, m.Terminate(end))
	assert.False(t, m.Terminate(end))
	assert.Equal(t, PhaseTerminated, m.GetPhase())
	assert.False(t, m.Activate(end), "terminated session cannot restart")

	started, ended := m.GetTimes()
	assert.Equal(t, start, *started)
	assert.Equal(t, end, *ended)
}

func TestManager_BuildInfo(t *testing.T) {
	m := New("session-2")
	m.SetPlaylistInfo("pl-1", "evening")

	info := m.BuildInfo()
	assert.Equal(t, "session-2", info.SessionID)
	assert.Equal(t, "waiting", info.Phase)
	assert.Equal(t, "pl-1", info.PlaylistID)
	assert.Equal(t, "evening", info.PlaylistName)
	assert.Nil(t, info.StartedAt)
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseWaiting, "waiting"},
		{PhaseActive, "active"},
		{PhaseTerminated, "terminated"},
		{Phase(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.phase.String())
	}
}
