// Package sim provides an in-process media engine that plays items against
// the wall clock without decoding audio.
package sim

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/upnext/internal/app/playback"
)

// ErrMediaUnavailable is reported for items listed in fail_urls.
var ErrMediaUnavailable = errors.New("media unavailable")

// Settings configures the simulated engine.
type Settings struct {
	TrackDurationMs int      `mapstructure:"track_duration_ms" default:"180000" validate:"gte=50"`
	TickMs          int      `mapstructure:"tick_ms" default:"1000" validate:"gte=5"`
	EventBuffer     int      `mapstructure:"event_buffer" default:"256" validate:"gte=16"`
	PreBuffer       bool     `mapstructure:"prebuffer"`
	FailURLs        []string `mapstructure:"fail_urls"`
}

// Engine simulates a queue player. Items are requested through the event
// channel, answered with SetupItem and then "played" for TrackDurationMs.
type Engine struct {
	mu       sync.Mutex
	settings Settings
	events   chan playback.EngineEvent

	count   int
	index   int
	loaded  bool
	url     string
	playing bool
	muted   bool
	shuffle bool
	repeat  playback.RepeatMode

	// Clock
	elapsed     time.Duration // Played time before startedAt
	startedAt   time.Time
	clockCancel func()
	generation  uint64

	closed bool
}

// New creates a simulated engine from a free-form settings map.
func New(settings map[string]any) (*Engine, error) {
	var s Settings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&s); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("sim engine config: %+v", s)
	if err := validator.New().Struct(s); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &Engine{
		settings: s,
		events:   make(chan playback.EngineEvent, s.EventBuffer),
	}, nil
}

// Events returns the engine's outbound message channel.
func (e *Engine) Events() <-chan playback.EngineEvent {
	return e.events
}

// SetItemsCount sets the number of linear items.
func (e *Engine) SetItemsCount(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count = n
}

// SetupItem loads url at index and starts it if the engine is playing.
func (e *Engine) SetupItem(url string, index int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopClockLocked()
	e.index = index
	e.loaded = true
	e.url = url
	e.elapsed = 0

	e.emitLocked(playback.EngineEvent{Type: playback.EngineItemChanged, Index: index})

	if slices.Contains(e.settings.FailURLs, url) {
		e.emitLocked(playback.EngineEvent{
			Type:   playback.EngineFailed,
			Index:  index,
			Target: playback.TargetCurrentItem,
			Err:    errors.Wrapf(ErrMediaUnavailable, "url=%s", url),
		})
		return
	}

	e.emitLocked(playback.EngineEvent{Type: playback.EngineReady, Index: index, Target: playback.TargetCurrentItem})
	if e.playing {
		e.startClockLocked()
	}
	if e.settings.PreBuffer && index+1 < e.count {
		e.emitLocked(playback.EngineEvent{Type: playback.EngineItemRequested, Index: index + 1, PreBuffer: true})
	}
}

// FetchAndPlay requests the item at index and plays it once set up.
func (e *Engine) FetchAndPlay(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.setPlayingLocked(true)
	e.requestLocked(index)
}

// Advance moves to the following item.
func (e *Engine) Advance() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceLocked()
}

func (e *Engine) advanceLocked() {
	next := 0
	if e.loaded {
		next = e.index + 1
	}
	if next >= e.count {
		if e.repeat != playback.RepeatAll || e.count == 0 {
			e.stopClockLocked()
			e.loaded = false
			e.setPlayingLocked(false)
			e.emitLocked(playback.EngineEvent{Type: playback.EngineReachedEnd})
			return
		}
		next = 0
	}
	e.requestLocked(next)
}

// Retreat moves to the preceding item.
func (e *Engine) Retreat() {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.index - 1
	if prev < 0 {
		prev = 0
		if e.repeat == playback.RepeatAll && e.count > 0 {
			prev = e.count - 1
		}
	}
	e.requestLocked(prev)
}

// MoveItem moves the item at from to to, keeping the current index on the
// same item.
func (e *Engine) MoveItem(from, to int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded || from == to {
		return
	}
	switch {
	case from == e.index:
		e.index = to
	case from < e.index && to >= e.index:
		e.index--
	case from > e.index && to <= e.index:
		e.index++
	}
}

// Play starts or resumes playback.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.playing && e.clockCancel != nil {
		return
	}
	e.setPlayingLocked(true)
	if e.loaded {
		e.startClockLocked()
		return
	}
	if e.count > 0 {
		e.requestLocked(0)
	}
}

// Pause pauses playback and keeps the position.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopClockLocked()
	e.setPlayingLocked(false)
}

// Seek moves the playhead of the current item.
func (e *Engine) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return
	}
	target := time.Duration(seconds * float64(time.Second))
	if target < 0 {
		target = 0
	}
	if d := e.duration(); target > d {
		target = d
	}

	running := e.clockCancel != nil
	e.stopClockLocked()
	e.elapsed = target
	if running {
		e.startClockLocked()
	}
	e.emitLocked(playback.EngineEvent{Type: playback.EngineTimeTick, Index: e.index, Seconds: target.Seconds()})
}

// SetShuffleMode records the shuffle flag. Item order is chosen by the
// coordinator, so the engine only reports it.
func (e *Engine) SetShuffleMode(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shuffle = on
}

// SetRepeatMode sets what happens when an item ends.
func (e *Engine) SetRepeatMode(mode playback.RepeatMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.repeat = mode
}

// SetMuted mutes or unmutes output.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
}

// Teardown unloads the current item. Safe to call repeatedly.
func (e *Engine) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopClockLocked()
	e.loaded = false
	e.url = ""
	e.elapsed = 0
	e.setPlayingLocked(false)
}

// CurrentIndex returns the linear index of the loaded item.
func (e *Engine) CurrentIndex() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index, e.loaded
}

// IsPlaying reports whether the engine is playing.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// IsMuted reports whether output is muted.
func (e *Engine) IsMuted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// IsShuffled reports the last shuffle flag set.
func (e *Engine) IsShuffled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shuffle
}

// DurationSeconds returns the duration of the loaded item, or 0.
func (e *Engine) DurationSeconds() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return 0
	}
	return e.duration().Seconds()
}

// CurrentSeconds returns the elapsed time of the loaded item.
func (e *Engine) CurrentSeconds() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked().Seconds()
}

// Close tears down the engine and closes the event channel.
func (e *Engine) Close() {
	e.Teardown()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}

func (e *Engine) duration() time.Duration {
	return time.Duration(e.settings.TrackDurationMs) * time.Millisecond
}

func (e *Engine) positionLocked() time.Duration {
	if !e.loaded {
		return 0
	}
	pos := e.elapsed
	if e.clockCancel != nil {
		pos += toWallTime(time.Now()).Sub(e.startedAt)
	}
	if d := e.duration(); pos > d {
		pos = d
	}
	return pos
}

func (e *Engine) requestLocked(index int) {
	if e.count == 0 {
		e.emitLocked(playback.EngineEvent{Type: playback.EngineReachedEnd})
		return
	}
	if index < 0 {
		index = 0
	}
	if index >= e.count {
		index = e.count - 1
	}
	e.emitLocked(playback.EngineEvent{Type: playback.EngineItemRequested, Index: index})
}

func (e *Engine) setPlayingLocked(playing bool) {
	if e.playing == playing {
		return
	}
	e.playing = playing
	e.emitLocked(playback.EngineEvent{Type: playback.EngineRateChanged, Playing: playing})
}

// startClockLocked runs the item against the wall clock, emitting a tick
// every TickMs and ending the item when its duration is reached.
func (e *Engine) startClockLocked() {
	e.stopClockLocked()

	ctx, cancel := context.WithCancel(context.Background())
	e.generation++
	gen := e.generation
	e.startedAt = toWallTime(time.Now())
	e.clockCancel = cancel

	go func() {
		ticker := time.NewTicker(time.Duration(e.settings.TickMs) * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !e.onTick(gen) {
					return
				}
			}
		}
	}()
}

// onTick reports whether the clock of generation gen should keep running.
func (e *Engine) onTick(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || e.clockCancel == nil {
		return false
	}

	pos := e.positionLocked()
	e.emitLocked(playback.EngineEvent{Type: playback.EngineTimeTick, Index: e.index, Seconds: pos.Seconds()})
	if pos < e.duration() {
		return true
	}

	e.stopClockLocked()
	e.elapsed = e.duration()
	if e.repeat == playback.RepeatOne {
		e.requestLocked(e.index)
	} else {
		e.advanceLocked()
	}
	return false
}

func (e *Engine) stopClockLocked() {
	if e.clockCancel == nil {
		return
	}
	e.elapsed += toWallTime(time.Now()).Sub(e.startedAt)
	e.clockCancel()
	e.clockCancel = nil
}

// emitLocked sends a message without blocking.
func (e *Engine) emitLocked(ev playback.EngineEvent) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		zlog.Warn().Msgf("sim: event dropped, channel full: type=%s index=%d", ev.Type, ev.Index)
	}
}

// toWallTime returns the time with the monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
