package playback

import "github.com/osa030/zora/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged    EventType = iota // A new track was loaded, or the queue was cleared
	EventStateChanged                     // Playback state changed
	EventQueueChanged                     // Queue contents or order changed
	EventModeChanged                      // Shuffle or repeat changed
	EventPositionChanged                  // Position, duration or buffered progress changed
	EventVolumeChanged                    // Volume or mute changed
	EventResumeApplied                    // A pending resume position was applied
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueChanged:
		return "queue_changed"
	case EventModeChanged:
		return "mode_changed"
	case EventPositionChanged:
		return "position_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventResumeApplied:
		return "resume_applied"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type  EventType
	Track *track.Track // Current track (nil when none is loaded)
	State State        // Current playback state
}
