package playback

// RepeatMode is the engine repeat setting.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Stop after the last item
	RepeatAll                   // Wrap to the first item
	RepeatOne                   // Replay the current item
)

// String returns the string representation of the repeat mode.
func (r RepeatMode) String() string {
	switch r {
	case RepeatOff:
		return "off"
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "unknown"
	}
}

// ParseRepeatMode parses "off", "all" or "one".
func ParseRepeatMode(s string) (RepeatMode, bool) {
	switch s {
	case "off", "":
		return RepeatOff, true
	case "all":
		return RepeatAll, true
	case "one":
		return RepeatOne, true
	default:
		return RepeatOff, false
	}
}

// Engine is the command side of the external media engine.
// Commands are fire-and-forget: the engine answers through EngineEvent
// messages, never by calling back into the coordinator synchronously.
type Engine interface {
	// SetItemsCount tells the engine how many linear items exist.
	SetItemsCount(n int)
	// SetupItem answers an item request with the media URL for index.
	SetupItem(url string, index int)
	// FetchAndPlay makes the engine request and play the item at index.
	FetchAndPlay(index int)
	Advance()
	Retreat()
	MoveItem(from, to int)
	Play()
	Pause()
	Seek(seconds float64)
	SetShuffleMode(on bool)
	SetRepeatMode(mode RepeatMode)
	SetMuted(muted bool)
	// Teardown releases engine resources. Safe to call repeatedly.
	Teardown()

	// CurrentIndex returns the linear index of the loaded item, if any.
	CurrentIndex() (int, bool)
	IsPlaying() bool
	IsMuted() bool
	// DurationSeconds returns the duration of the playing item, or 0 if unknown.
	DurationSeconds() float64
	// CurrentSeconds returns the elapsed time of the playing item.
	CurrentSeconds() float64
}

// EngineEventType identifies a message sent by the engine.
type EngineEventType int

const (
	EngineItemRequested   EngineEventType = iota // Engine needs the URL for Index
	EngineItemChanged                            // Engine switched to a new item
	EngineRateChanged                            // Playing flag changed
	EngineReady                                  // Target is ready to play
	EngineFailed                                 // Target failed
	EngineItemFailedToEnd                        // Item could not play to its end
	EngineStalled                                // Playback stalled on the current item
	EngineReachedEnd                             // Last item finished
	EngineRouteChanged                           // Audio route changed
	EngineTimeTick                               // Periodic position update
)

// String returns the string representation of the engine event type.
func (e EngineEventType) String() string {
	switch e {
	case EngineItemRequested:
		return "item_requested"
	case EngineItemChanged:
		return "item_changed"
	case EngineRateChanged:
		return "rate_changed"
	case EngineReady:
		return "ready"
	case EngineFailed:
		return "failed"
	case EngineItemFailedToEnd:
		return "item_failed_to_end"
	case EngineStalled:
		return "stalled"
	case EngineReachedEnd:
		return "reached_end"
	case EngineRouteChanged:
		return "route_changed"
	case EngineTimeTick:
		return "time_tick"
	default:
		return "unknown"
	}
}

// EngineTarget says whether a ready/failed message concerns the current item
// or the player as a whole.
type EngineTarget int

const (
	TargetCurrentItem EngineTarget = iota
	TargetPlayer
)

// EngineEvent is a message from the engine to the coordinator.
type EngineEvent struct {
	Type      EngineEventType
	Index     int          // Linear index (item requested / changed)
	PreBuffer bool         // Item request is a prefetch
	Playing   bool         // Rate changed
	Target    EngineTarget // Ready / failed
	Seconds   float64      // Time tick
	Err       error        // Failure detail
}

// Backend is an Engine that reports back through a message channel.
type Backend interface {
	Engine
	Events() <-chan EngineEvent
	Close()
}
