package session

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/upnext/internal/app/filter"
	"github.com/osa030/upnext/internal/app/notification"
	"github.com/osa030/upnext/internal/app/queue"
	"github.com/osa030/upnext/internal/domain/track"
	"github.com/osa030/upnext/internal/infra/config"
	"github.com/osa030/upnext/internal/infra/engine/sim"
)

type collector struct {
	mu    sync.Mutex
	types []string
}

func (c *collector) Send(n *notification.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, n.Type)
	return nil
}

func (c *collector) seen(typ string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.types {
		if t == typ {
			return true
		}
	}
	return false
}

func testConfig(tracks ...string) *config.Config {
	logs := false
	cfg := &config.Config{
		Admin: config.AdminConfig{Token: "t"},
		Player: config.PlayerConfig{
			PreviousRestartSec: 5,
			EventBuffer:        128,
			NotifyTimeoutMs:    200,
			Repeat:             "off",
			Logs:               &logs,
			AutoPlay:           true,
		},
		Engine: config.EngineConfig{Type: "sim"},
	}
	for _, name := range tracks {
		cfg.Playlist.Tracks = append(cfg.Playlist.Tracks, config.TrackConfig{URL: "file:///" + name + ".mp3", Name: name})
	}
	cfg.Playlist.Name = "test"
	return cfg
}

func newSession(t *testing.T, cfg *config.Config) *Manager {
	t.Helper()
	engine, err := sim.New(map[string]any{"track_duration_ms": 60000, "tick_ms": 50})
	require.NoError(t, err)

	m, err := NewManager(cfg, engine, queue.WithRand(rand.New(rand.NewPCG(3, 4))))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func currentName(m *Manager) string {
	cur, ok := m.Playback().CurrentTrack()
	if !ok {
		return ""
	}
	return cur.Name
}

func historyNames(m *Manager) []string {
	h := m.Queue().History()
	names := make([]string, len(h))
	for i, t := range h {
		names[i] = t.Name
	}
	return names
}

func TestNewManager_Validation(t *testing.T) {
	cfg := testConfig()
	_, err := NewManager(cfg, nil)
	assert.Error(t, err)

	engine, err := sim.New(nil)
	require.NoError(t, err)
	defer engine.Close()

	cfg.Player.Repeat = "sometimes"
	_, err = NewManager(cfg, engine)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown repeat mode")
}

func TestNewManager_AppliesModes(t *testing.T) {
	cfg := testConfig()
	cfg.Player.Shuffle = true
	cfg.Player.Repeat = "one"
	m := newSession(t, cfg)

	assert.True(t, m.Playback().Shuffle())
	assert.Equal(t, "one", m.Playback().Repeat().String())
	assert.NotEmpty(t, m.ID())
}

func TestManager_AutoPlayAndPlayNext(t *testing.T) {
	m := newSession(t, testConfig("A", "B", "C"))
	sub := &collector{}
	m.GetNotificationManager().Subscribe(sub)

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.IsActive())

	require.Eventually(t, func() bool { return currentName(m) == "A" }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return sub.seen("track_changed") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Playback().AddPlayNext(track.New("file:///X.mp3", "X", "", "", "")))

	m.Playback().Next()
	require.Eventually(t, func() bool { return currentName(m) == "X" }, 2*time.Second, 10*time.Millisecond)

	m.Playback().Next()
	require.Eventually(t, func() bool { return currentName(m) == "B" }, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		names := historyNames(m)
		return len(names) == 3 && names[0] == "A" && names[1] == "X" && names[2] == "B"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, m.Queue().NextCount())

	status := m.GetStatus()
	assert.Equal(t, "normal_playing", status.State)
	assert.Equal(t, "active", status.Session.Phase)
	assert.Equal(t, "test", status.Session.PlaylistName)
	assert.Equal(t, 3, status.QueueSize)
	assert.Equal(t, 1, status.Subscribers)
	require.NotNil(t, status.CurrentTrack)
	assert.Equal(t, "B", status.CurrentTrack.Name)
}

func TestManager_StartTwice(t *testing.T) {
	m := newSession(t, testConfig("A"))
	require.NoError(t, m.Start(context.Background()))
	assert.True(t, errors.Is(m.Start(context.Background()), ErrAlreadyStarted))

	require.NoError(t, m.Stop())
	assert.True(t, errors.Is(m.Start(context.Background()), ErrSessionNotRunning))
}

func TestManager_StopBroadcastsAndClosesDone(t *testing.T) {
	m := newSession(t, testConfig("A", "B"))
	sub := &collector{}
	m.GetNotificationManager().Subscribe(sub)
	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return currentName(m) == "A" }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed")
	}
	assert.True(t, sub.seen("session_ended"))
	assert.False(t, m.IsActive())
	assert.Equal(t, "idle", m.GetStatus().State)
	assert.Equal(t, 2, m.Queue().TotalTracks(), "queue survives stop")
}

func TestManager_ContextCancelStops(t *testing.T) {
	m := newSession(t, testConfig("A"))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))

	cancel()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop on context cancel")
	}
}

func TestManager_EmptyPlaylistStaysIdle(t *testing.T) {
	m := newSession(t, testConfig())
	require.NoError(t, m.Start(context.Background()))

	m.Playback().PlayAll()
	assert.Never(t, func() bool { return currentName(m) != "" }, 200*time.Millisecond, 20*time.Millisecond)
	assert.Equal(t, "idle", m.GetStatus().State)
	assert.Equal(t, -1, m.GetStatus().CurrentIndex)
}

func TestManager_AddPlayNextFilters(t *testing.T) {
	cfg := testConfig("A")
	cfg.Player.AutoPlay = false
	cfg.Filters = map[string]config.FilterConfig{
		"duplicate_track_filter": {Enabled: true},
		"next_limit_filter":      {Enabled: true, Settings: map[string]any{"max_pending": 2}},
	}
	m := newSession(t, cfg)
	require.NoError(t, m.Start(context.Background()))
	ctx := context.Background()

	require.NoError(t, m.AddPlayNext(ctx, track.New("file:///X.mp3", "X", "", "", "")))

	err := m.AddPlayNext(ctx, track.New("file:///X.mp3", "X again", "", "", ""))
	require.True(t, filter.IsRejected(err))
	var rejected *filter.RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "duplicate_track", rejected.Code)

	require.NoError(t, m.AddPlayNext(ctx, track.New("file:///Y.mp3", "Y", "", "", "")))
	err = m.AddPlayNext(ctx, track.New("file:///Z.mp3", "Z", "", "", ""))
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, "next_queue_full", rejected.Code)

	err = m.AddPlayNext(ctx, track.Track{Name: "no url"})
	require.Error(t, err)
	assert.False(t, filter.IsRejected(err))

	assert.Equal(t, 2, m.Queue().NextCount())
}

func TestNewManager_InvalidFilters(t *testing.T) {
	cfg := testConfig()
	cfg.Filters = map[string]config.FilterConfig{"nope": {Enabled: true}}
	engine, err := sim.New(nil)
	require.NoError(t, err)
	defer engine.Close()

	_, err = NewManager(cfg, engine)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter config")
}
