// Package session provides the session manager, the owner of one queue,
// its playback coordinator and the media engine driving it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/upnext/internal/app/filter"
	"github.com/osa030/upnext/internal/app/notification"
	"github.com/osa030/upnext/internal/app/playback"
	"github.com/osa030/upnext/internal/app/queue"
	"github.com/osa030/upnext/internal/app/session/state"
	"github.com/osa030/upnext/internal/domain/playlist"
	"github.com/osa030/upnext/internal/domain/track"
	"github.com/osa030/upnext/internal/infra/config"
)

var (
	ErrSessionNotRunning = errors.New("session is not running")
	ErrAlreadyStarted    = errors.New("session already started")
)

// Manager owns the queue store, the coordinator and the engine of one session.
type Manager struct {
	mu sync.RWMutex

	// Configuration
	config *config.Config

	// Components
	stateMgr     *state.Manager
	store        *queue.Store
	playback     *playback.Coordinator
	engine       playback.Backend
	notification *notification.Manager
	filterChain  *filter.Chain

	// Channels
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session around engine. Store options are passed
// through, which lets tests fix the shuffle random source.
func NewManager(cfg *config.Config, engine playback.Backend, opts ...queue.Option) (*Manager, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	repeat, ok := playback.ParseRepeatMode(cfg.Player.Repeat)
	if !ok {
		return nil, errors.Newf("unknown repeat mode: %s", cfg.Player.Repeat)
	}

	store := queue.NewStore(opts...)
	chain, err := filter.BuildChain(cfg.Filters, store)
	if err != nil {
		return nil, errors.Wrap(err, "invalid filter config")
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		config:   cfg,
		stateMgr: state.New(uuid.New().String()),
		store:    store,
		playback: playback.NewCoordinator(store, engine, playback.Config{
			RestartThreshold: cfg.Player.PreviousRestartThreshold(),
			EventBuffer:      cfg.Player.EventBuffer,
			Logs:             cfg.Player.LogsEnabled(),
		}),
		engine:       engine,
		notification: notification.NewManager(cfg.Player.NotifyTimeout()),
		filterChain:  chain,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	if cfg.Player.Shuffle {
		m.playback.EnableShuffle()
	}
	switch repeat {
	case playback.RepeatAll:
		m.playback.EnableRepeat()
	case playback.RepeatOne:
		m.playback.EnableRepeatOne()
	}

	return m, nil
}

// Start begins processing engine events. The configured playlist is loaded
// and, with auto_play, playback starts from the first track. Cancelling ctx
// stops the session.
func (m *Manager) Start(ctx context.Context) error {
	if !m.stateMgr.Activate(time.Now()) {
		if m.stateMgr.GetPhase() == state.PhaseTerminated {
			return ErrSessionNotRunning
		}
		return ErrAlreadyStarted
	}
	sessionID := m.stateMgr.GetSessionID()
	zlog.Info().Msgf("session started: session_id=%s", sessionID)

	go m.eventLoop()
	go m.notification.Run(m.ctx, m.playback.Events())
	go func() {
		select {
		case <-ctx.Done():
			zlog.Info().Msgf("session context cancelled: session_id=%s", sessionID)
			_ = m.Stop()
		case <-m.ctx.Done():
		}
	}()

	if pl := m.config.Playlist.BuildPlaylist(); pl.Len() > 0 {
		m.LoadPlaylist(pl)
	}
	if m.config.Player.AutoPlay && m.store.TotalTracks() > 0 {
		zlog.Info().Msgf("auto play: tracks=%d", m.store.TotalTracks())
		m.playback.PlayAll()
	}

	return nil
}

// LoadPlaylist replaces the main queue with the playlist's tracks.
func (m *Manager) LoadPlaylist(pl playlist.Playlist) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playback.SetPlaylist(pl.Positioned())
	m.stateMgr.SetPlaylistInfo(pl.ID, pl.Name)
	zlog.Info().Msgf("playlist loaded: name=%s tracks=%d", pl.Name, pl.Len())
}

// AddPlayNext runs the filter chain and queues t to play after the current
// track. A refused track yields a *filter.RejectedError.
func (m *Manager) AddPlayNext(ctx context.Context, t track.Track) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := m.filterChain.Execute(ctx, t).Err(); err != nil {
		zlog.Info().Msgf("play next rejected: url=%s err=%v", t.URL, err)
		return err
	}
	return m.playback.AddPlayNext(t)
}

// Stop ends the session. Playback stops, subscribers get a final
// session_ended notification and Done is closed. Safe to call repeatedly.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.stateMgr.Terminate(time.Now()) {
		return nil
	}
	sessionID := m.stateMgr.GetSessionID()
	zlog.Info().Msgf("phase changed: phase=TERMINATED session_id=%s", sessionID)

	m.playback.Stop()

	info := m.stateMgr.BuildInfo()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.notification.Broadcast(&notification.Notification{
			Type:      "session_ended",
			State:     info.Phase,
			Timestamp: time.Now(),
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		zlog.Warn().Msg("session ended notification timed out")
	}

	m.cancel()
	close(m.done)
	return nil
}

// Done returns a channel that is closed when the session is stopped.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// IsActive reports whether the session is running.
func (m *Manager) IsActive() bool {
	return m.stateMgr.IsActive()
}

// ID returns the session ID.
func (m *Manager) ID() string {
	return m.stateMgr.GetSessionID()
}

// Playback returns the coordinator for host operations.
func (m *Manager) Playback() *playback.Coordinator {
	return m.playback
}

// Queue returns the queue store.
func (m *Manager) Queue() *queue.Store {
	return m.store
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Status represents the current session status.
type Status struct {
	Session         state.Info   `json:"session"`
	State           string       `json:"state"`
	Playing         bool         `json:"playing"`
	Muted           bool         `json:"muted"`
	Shuffle         bool         `json:"shuffle"`
	Repeat          string       `json:"repeat"`
	CurrentTrack    *track.Track `json:"current_track,omitempty"`
	CurrentIndex    int          `json:"current_index"`
	DurationSeconds float64      `json:"duration_seconds"`
	PositionSeconds float64      `json:"position_seconds"`
	QueueSize       int          `json:"queue_size"`
	NextCount       int          `json:"next_count"`
	HistorySize     int          `json:"history_size"`
	Subscribers     int          `json:"subscribers"`
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() *Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cur, _ := m.playback.CurrentTrack()
	index, ok := m.playback.CurrentIndex()
	if !ok {
		index = -1
	}

	return &Status{
		Session:         m.stateMgr.BuildInfo(),
		State:           m.playback.GetState().String(),
		Playing:         m.playback.IsPlaying(),
		Muted:           m.playback.IsMuted(),
		Shuffle:         m.playback.Shuffle(),
		Repeat:          m.playback.Repeat().String(),
		CurrentTrack:    cur,
		CurrentIndex:    index,
		DurationSeconds: m.playback.DurationSeconds(),
		PositionSeconds: m.playback.CurrentSeconds(),
		QueueSize:       m.store.TotalTracks(),
		NextCount:       len(m.playback.UpcomingNext()),
		HistorySize:     len(m.store.History()),
		Subscribers:     m.notification.SubscriberCount(),
	}
}

// eventLoop funnels engine messages into the coordinator.
func (m *Manager) eventLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("event loop panicked: %v", r)
			// Restart loop to prevent zombie session
			zlog.Info().Msg("restarting event loop")
			go m.eventLoop()
		}
	}()

	for {
		select {
		case <-m.ctx.Done():
			return
		case ev, ok := <-m.engine.Events():
			if !ok {
				zlog.Warn().Msg("engine event channel closed, stopping session")
				_ = m.Stop()
				return
			}
			if m.ctx.Err() != nil {
				return
			}
			m.playback.HandleEngineEvent(ev)
		}
	}
}

// Close stops the session and releases the engine.
func (m *Manager) Close() {
	_ = m.Stop()
	m.playback.Close()
	m.engine.Close()
	m.notification.Close()
}
