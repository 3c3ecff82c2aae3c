package playback

import "github.com/osa030/upnext/internal/domain/track"

// EventType represents an outbound event type for the host application.
type EventType int

const (
	EventTrackChanged    EventType = iota // Current track changed
	EventDurationKnown                    // Duration of the current item is known
	EventPositionChanged                  // Playback position moved
	EventRateChanged                      // Playing/paused changed
	EventRouteChanged                     // Audio route changed
	EventReadyToPlay                      // Current item is ready
	EventQueueUpdated                     // Queue contents changed
	EventQueueEmpty                       // Nothing left to play
	EventTrackFailed                      // Current item failed and was skipped
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventDurationKnown:
		return "duration_known"
	case EventPositionChanged:
		return "position_changed"
	case EventRateChanged:
		return "rate_changed"
	case EventRouteChanged:
		return "route_changed"
	case EventReadyToPlay:
		return "ready_to_play"
	case EventQueueUpdated:
		return "queue_updated"
	case EventQueueEmpty:
		return "queue_empty"
	case EventTrackFailed:
		return "track_failed"
	default:
		return "unknown"
	}
}

// Event represents an outbound event.
type Event struct {
	Type    EventType
	Track   *track.Track // Current track (nil for some events)
	State   State        // Coordinator state
	Seconds float64      // Duration or position
	Playing bool         // Rate changed
}
