package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/upnext/internal/app/queue"
	"github.com/osa030/upnext/internal/domain/track"
)

// Errors
var (
	ErrNoTrack     = errors.New("no track loaded")
	ErrNoDuration  = errors.New("duration of current item is unknown")
	ErrInvalidSeek = errors.New("seek fraction must be between 0 and 1")
	ErrNoPrefetch  = errors.New("next item is picked at load time while shuffle is on")
)

// Config holds coordinator configuration.
type Config struct {
	RestartThreshold time.Duration // Previous() restarts the current item after this much playback
	EventBuffer      int           // Capacity of the outbound event channel
	Logs             bool          // Trace every engine request and queue mutation
}

// Coordinator mediates between the queue store and the media engine.
// Every public method runs under one mutex, so compound sequences such as
// prune, resolve and mark are never interleaved with host mutations.
type Coordinator struct {
	mu sync.Mutex

	store  *queue.Store
	engine Engine
	config Config
	trace  zerolog.Logger

	// Playback pointers
	current  *track.Track // Track the engine is playing
	lastMain *track.Track // Last Normal track that was loaded
	state    State

	// Modes
	shuffle bool
	repeat  RepeatMode

	// Request bookkeeping
	fromTouch  bool // Next load was asked for by explicit user navigation
	resumeMain bool // A Next track was inserted; resume main order once the next queue drains

	// Events
	eventCh chan Event
	closed  bool

	// Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator creates a coordinator over the given store and engine.
func NewCoordinator(store *queue.Store, engine Engine, config Config) *Coordinator {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 32
	}
	trace := zerolog.Nop()
	if config.Logs {
		trace = zlog.Logger.With().Str("component", "playback").Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:   store,
		engine:  engine,
		config:  config,
		trace:   trace,
		state:   StateIdle,
		eventCh: make(chan Event, config.EventBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Events returns the outbound event channel.
func (c *Coordinator) Events() <-chan Event {
	return c.eventCh
}

// SetPlaylist replaces the main queue. The next queue is cleared.
func (c *Coordinator) SetPlaylist(tracks []track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.SetMainQueue(tracks)
	c.lastMain = nil
	c.resumeMain = false
	c.updateCountLocked()
	c.trace.Debug().Msgf("playlist set: tracks=%d", len(tracks))
	c.sendEventLocked(Event{Type: EventQueueUpdated, Track: c.current, State: c.state})
}

// AddPlayNext inserts a track at the front of the next queue.
func (c *Coordinator) AddPlayNext(t track.Track) error {
	if err := t.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.InsertNextTrack(t)
	c.resumeMain = true
	c.updateCountLocked()
	c.trace.Debug().Msgf("play next added: name=%s url=%s next_count=%d", t.Name, t.URL, c.store.NextCount())
	c.sendEventLocked(Event{Type: EventQueueUpdated, Track: c.current, State: c.state})
	return nil
}

// PlayAtIndex plays the flattened index chosen by the user.
func (c *Coordinator) PlayAtIndex(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fromTouch = true
	c.engine.FetchAndPlay(index)
}

// PlayAll starts playback from the first flattened index.
func (c *Coordinator) PlayAll() {
	c.PlayAtIndex(0)
}

// PlayMainAtIndex plays the main-queue track at mainIndex.
func (c *Coordinator) PlayMainAtIndex(mainIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fromTouch = true
	c.engine.FetchAndPlay(c.store.IndexForMainPosition(mainIndex))
}

// PlayNextAtIndex plays the entry at nextIndex of the upcoming next queue.
// Entries in front of it are dropped as skipped.
func (c *Coordinator) PlayNextAtIndex(nextIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// the playing Next track is not listed as upcoming; step over it
	if p := c.playingNextLocked(c.store.NextTracks()); p >= 0 && p <= nextIndex {
		nextIndex++
	}
	index := c.store.IndexForNextPosition(nextIndex)
	c.updateCountLocked()
	c.sendEventLocked(Event{Type: EventQueueUpdated, Track: c.current, State: c.state})
	c.engine.FetchAndPlay(index)
}

// ItemRequested answers the engine's request for linear index.
// Pre-buffer requests are answered without touching queue state. With
// shuffle on they fail with ErrNoPrefetch, since the real load picks a
// random entry.
// When the next queue has just drained, the engine is re-pointed at the
// main track following the last Normal track, or at the first main track
// when none has played. The returned track is the one it will request next.
func (c *Coordinator) ItemRequested(index int, preBuffer bool) (track.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if preBuffer {
		if c.shuffle {
			return track.Track{}, ErrNoPrefetch
		}
		return c.store.ResolveTrack(index, c.shuffle, c.fromTouch)
	}
	return c.loadLocked(index)
}

func (c *Coordinator) loadLocked(index int) (track.Track, error) {
	if removed := c.store.PruneConsumedNextTracks(); removed > 0 {
		c.updateCountLocked()
		c.trace.Debug().Msgf("pruned consumed next tracks: count=%d", removed)
	}

	logical := index
	if c.resumeMain && c.store.NextCount() == 0 {
		c.resumeMain = false
		if !c.fromTouch && !c.shuffle {
			// main order resumes after the last Normal track, or at its start
			target := 0
			if c.lastMain != nil {
				target = c.lastMain.Position + 1
			}
			if target >= c.store.TotalTracks() {
				target = 0
			}
			t, err := c.store.TrackAt(target)
			if err != nil {
				return c.emptyLocked()
			}
			c.trace.Debug().Msgf("next queue drained, resuming main: requested=%d target=%d", index, target)
			c.engine.FetchAndPlay(target)
			return t, nil
		}
	}

	if c.shuffle {
		idx, err := c.store.SelectShuffleIndex()
		if err != nil {
			return c.emptyLocked()
		}
		logical = idx
	}

	t, err := c.store.ResolveTrack(logical, c.shuffle, c.fromTouch)
	if err != nil {
		return c.emptyLocked()
	}

	if t.IsNext() {
		if !c.store.MarkNextTrackPlayed(t) {
			c.trace.Debug().Msgf("next track already pruned: name=%s position=%d", t.Name, t.Position)
		}
		c.state = StateNextPlaying
	} else {
		lm := t
		c.lastMain = &lm
		c.state = StateNormalPlaying
	}

	cur := t
	c.current = &cur
	c.fromTouch = false

	c.trace.Debug().Msgf("item loaded: requested=%d logical=%d name=%s origin=%s", index, logical, t.Name, t.Origin)
	c.engine.SetupItem(t.URL, index)
	return t, nil
}

// emptyLocked handles a load against an empty store.
func (c *Coordinator) emptyLocked() (track.Track, error) {
	c.current = nil
	c.state = StateIdle
	c.fromTouch = false
	c.sendEventLocked(Event{Type: EventQueueEmpty, State: c.state})
	return track.Track{}, queue.ErrQueueEmpty
}

// Next advances playback. While Next tracks are queued the engine is sent
// back to the last Normal position, where the front Next track preempts.
func (c *Coordinator) Next() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextLocked()
}

func (c *Coordinator) nextLocked() {
	if removed := c.store.PruneConsumedNextTracks(); removed > 0 {
		c.updateCountLocked()
	}
	c.fromTouch = false

	if c.store.NextCount() > 0 && c.lastMain != nil {
		c.engine.FetchAndPlay(c.lastMain.Position)
		return
	}
	c.engine.Advance()
	c.engine.Play()
}

// Previous steps back. After RestartThreshold of playback the current item
// restarts instead. From a Next track it returns to the last Normal track.
func (c *Coordinator) Previous() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.RestartThreshold > 0 && c.engine.CurrentSeconds() > c.config.RestartThreshold.Seconds() {
		c.engine.Seek(0)
		c.engine.Play()
		return
	}

	if removed := c.store.PruneConsumedNextTracks(); removed > 0 {
		c.updateCountLocked()
	}
	nextCount := c.store.NextCount()
	playingNext := c.current != nil && c.current.IsNext()
	if c.lastMain != nil && (nextCount > 0 || playingNext) {
		c.fromTouch = true
		target := c.lastMain.Position - 1
		if playingNext {
			target = c.lastMain.Position
		}
		if target < 0 {
			target = 0
		}
		c.engine.FetchAndPlay(target + nextCount)
		return
	}

	if _, ok := c.engine.CurrentIndex(); ok {
		c.engine.Retreat()
	}
}

// ReorderForPrevious moves the engine items of every queued Next track
// so they follow the engine's current item.
func (c *Coordinator) ReorderForPrevious() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now, ok := c.engine.CurrentIndex()
	nextCount := c.store.NextCount()
	// current item sits inside the next window
	if !ok || nextCount == 0 || now < nextCount {
		return
	}
	for i := 0; i < nextCount; i++ {
		c.engine.MoveItem(0, now)
	}
}

// Play resumes playback if the engine is not playing.
func (c *Coordinator) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.engine.IsPlaying() {
		c.engine.Play()
		c.publishDurationLocked()
	}
}

// Pause pauses playback if the engine is playing.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseLocked()
}

func (c *Coordinator) pauseLocked() {
	if c.engine.IsPlaying() {
		c.engine.Pause()
	}
}

// Stop tears down the engine and resets the playback position.
// Queue contents and history are kept. Safe to call from any state.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.engine.Teardown()
	c.current = nil
	c.lastMain = nil
	c.state = StateIdle
	c.fromTouch = false
	c.resumeMain = false
}

// EnableShuffle turns shuffle on.
func (c *Coordinator) EnableShuffle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shuffle = true
	c.engine.SetShuffleMode(true)
}

// DisableShuffle turns shuffle off and forgets which tracks were played.
func (c *Coordinator) DisableShuffle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shuffle = false
	c.engine.SetShuffleMode(false)
	c.store.ResetPlayed()
}

// EnableRepeat repeats the whole queue.
func (c *Coordinator) EnableRepeat() {
	c.setRepeat(RepeatAll)
}

// EnableRepeatOne repeats the current track.
func (c *Coordinator) EnableRepeatOne() {
	c.setRepeat(RepeatOne)
}

// DisableRepeat turns repeat off.
func (c *Coordinator) DisableRepeat() {
	c.setRepeat(RepeatOff)
}

func (c *Coordinator) setRepeat(mode RepeatMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.repeat = mode
	c.engine.SetRepeatMode(mode)
}

// Seek moves to fraction (0..1) of the current item's duration.
func (c *Coordinator) Seek(fraction float64) error {
	if fraction < 0 || fraction > 1 || math.IsNaN(fraction) {
		return ErrInvalidSeek
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return ErrNoTrack
	}
	duration := c.engine.DurationSeconds()
	if duration <= 0 || math.IsInf(duration, 0) || math.IsNaN(duration) {
		return ErrNoDuration
	}
	c.engine.Seek(duration * fraction)
	return nil
}

// Mute mutes or unmutes the engine.
func (c *Coordinator) Mute(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.SetMuted(muted)
}

// IsMuted reports the engine mute state.
func (c *Coordinator) IsMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.IsMuted()
}

// IsPlaying reports whether the engine is playing.
func (c *Coordinator) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.IsPlaying()
}

// Shuffle reports whether shuffle is on.
func (c *Coordinator) Shuffle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shuffle
}

// Repeat returns the repeat mode.
func (c *Coordinator) Repeat() RepeatMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repeat
}

// GetState returns the coordinator state.
func (c *Coordinator) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentTrack returns the track the engine is playing.
func (c *Coordinator) CurrentTrack() (*track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil, false
	}
	cur := *c.current
	return &cur, true
}

// CurrentIndex returns the engine's linear index.
func (c *Coordinator) CurrentIndex() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.CurrentIndex()
}

// UpcomingNext returns the next queue without the Next track that is playing.
func (c *Coordinator) UpcomingNext() []track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.store.NextTracks()
	if p := c.playingNextLocked(next); p >= 0 {
		return append(next[:p], next[p+1:]...)
	}
	return next
}

// playingNextLocked returns where the playing Next track sits in next, or -1.
// Later inserts push it back from the front.
// Must be called with lock held.
func (c *Coordinator) playingNextLocked(next []track.Track) int {
	if c.current == nil || !c.current.IsNext() {
		return -1
	}
	for i, n := range next {
		if n.Played && n.SameAs(*c.current) {
			return i
		}
	}
	return -1
}

// NumberOfItems returns the item count the engine should use.
func (c *Coordinator) NumberOfItems() int {
	return c.store.TotalTracks()
}

// DurationSeconds returns the duration of the playing item.
func (c *Coordinator) DurationSeconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.DurationSeconds()
}

// CurrentSeconds returns the elapsed time of the playing item.
func (c *Coordinator) CurrentSeconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.CurrentSeconds()
}

// HandleEngineEvent reacts to a message from the engine.
func (c *Coordinator) HandleEngineEvent(ev EngineEvent) {
	c.trace.Debug().Msgf("engine event: type=%s index=%d", ev.Type, ev.Index)

	switch ev.Type {
	case EngineItemRequested:
		if _, err := c.ItemRequested(ev.Index, ev.PreBuffer); err != nil {
			zlog.Debug().Msgf("playback: item request not served: index=%d err=%v", ev.Index, err)
		}

	case EngineItemChanged:
		c.onItemChanged()

	case EngineRateChanged:
		c.send(Event{Type: EventRateChanged, Playing: ev.Playing})

	case EngineReady:
		if ev.Target != TargetCurrentItem {
			zlog.Debug().Msg("playback: engine player ready")
			return
		}
		c.mu.Lock()
		c.publishDurationLocked()
		c.sendEventLocked(Event{Type: EventReadyToPlay, Track: c.current, State: c.state})
		c.mu.Unlock()

	case EngineFailed:
		if ev.Target != TargetCurrentItem {
			zlog.Error().Msgf("playback: engine failure ignored: err=%v", ev.Err)
			return
		}
		c.mu.Lock()
		zlog.Warn().Msgf("playback: current item failed, skipping: track=%s err=%v", trackName(c.current), ev.Err)
		c.sendEventLocked(Event{Type: EventTrackFailed, Track: c.current, State: c.state})
		c.nextLocked()
		c.mu.Unlock()

	case EngineItemFailedToEnd:
		zlog.Warn().Msgf("playback: item failed to reach end, pausing: err=%v", ev.Err)
		c.Pause()

	case EngineStalled:
		zlog.Debug().Msg("playback: item playback stalled")

	case EngineReachedEnd:
		zlog.Debug().Msg("playback: engine reached end of items")

	case EngineRouteChanged:
		c.send(Event{Type: EventRouteChanged})

	case EngineTimeTick:
		c.send(Event{Type: EventPositionChanged, Seconds: ev.Seconds})

	default:
		zlog.Warn().Msgf("playback: unknown engine event: type=%d", ev.Type)
	}
}

func (c *Coordinator) onItemChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var t track.Track
	if c.current != nil {
		t = *c.current
	} else {
		front, err := c.store.TrackAt(0)
		if err != nil {
			return
		}
		t = front
	}
	c.store.AppendHistory(t)

	c.sendEventLocked(Event{Type: EventTrackChanged, Track: &t, State: c.state})
	c.sendEventLocked(Event{Type: EventQueueUpdated, Track: &t, State: c.state})
	c.publishDurationLocked()
}

// publishDurationLocked emits the duration when the engine knows it.
// Must be called with lock held.
func (c *Coordinator) publishDurationLocked() {
	if d := c.engine.DurationSeconds(); d > 0 && !math.IsInf(d, 0) {
		c.sendEventLocked(Event{Type: EventDurationKnown, Track: c.current, State: c.state, Seconds: d})
	}
}

// updateCountLocked keeps the engine item count equal to the flattened view.
// Must be called with lock held.
func (c *Coordinator) updateCountLocked() {
	c.engine.SetItemsCount(c.store.TotalTracks())
}

// Close stops playback and closes the event channel.
func (c *Coordinator) Close() {
	c.cancel()
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
}

func (c *Coordinator) send(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.Track = c.current
	e.State = c.state
	c.sendEventLocked(e)
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Coordinator) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	if e.Track != nil {
		cp := *e.Track
		e.Track = &cp
	}
	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	default:
		zlog.Debug().Msgf("playback: event dropped, channel full: type=%s", e.Type)
	}
}

func trackName(t *track.Track) string {
	if t == nil {
		return ""
	}
	return t.Name
}
