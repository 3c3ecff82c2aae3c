// Package playback provides the coordinator between the queue store and the
// external media engine.
package playback

// State represents the coordinator state.
type State int

const (
	StateIdle          State = iota // No track loaded
	StateNormalPlaying              // Current track comes from the main queue
	StateNextPlaying                // Current track comes from the next queue
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNormalPlaying:
		return "normal_playing"
	case StateNextPlaying:
		return "next_playing"
	default:
		return "unknown"
	}
}
