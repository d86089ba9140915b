// Package playback provides the player engine: one media output, the queue, and the transport state machine.
package playback

// State represents the playback state.
type State int

const (
	StateIdle      State = iota // No track loaded, or stopped
	StateLoading                // Resource assigned, not ready yet
	StatePlaying                // Track is playing
	StatePaused                 // Track is paused
	StateBuffering              // Stalled waiting for data while playing
	StateEnded                  // Track reached its natural end
	StateError                  // Resource failed to load or decode
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsActive reports whether the state counts as nominally playing.
func (s State) IsActive() bool {
	return s == StatePlaying || s == StateBuffering
}

// RepeatMode controls what happens at the end of a track.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Stop at the end of the queue
	RepeatAll                   // Wrap to the first track
	RepeatOne                   // Replay the current track
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
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

// Next returns the following mode in the off, all, one cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// ParseRepeatMode parses a mode name. Unknown names map to RepeatOff.
func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "all":
		return RepeatAll
	case "one":
		return RepeatOne
	default:
		return RepeatOff
	}
}
