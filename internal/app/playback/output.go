package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrPlayAborted is the rejection a pending play gets when it is superseded
// by a new load or a pause. The engine never treats it as a failure.
var ErrPlayAborted = errors.New("play request aborted")

// MediaEventType identifies a notification from the media output.
type MediaEventType int

const (
	MediaLoadStart      MediaEventType = iota // Resource fetch started
	MediaLoadedMetadata                       // Duration is known
	MediaCanPlay                              // Enough data to start
	MediaPlaying                              // Audio is flowing
	MediaPause                                // Output paused
	MediaWaiting                              // Stalled for data
	MediaEnded                                // Natural end of resource
	MediaError                                // Load or decode failure
	MediaTimeUpdate                           // Periodic position report
	MediaProgress                             // Buffered range grew
)

// String returns the string representation of the media event type.
func (t MediaEventType) String() string {
	switch t {
	case MediaLoadStart:
		return "loadstart"
	case MediaLoadedMetadata:
		return "loadedmetadata"
	case MediaCanPlay:
		return "canplay"
	case MediaPlaying:
		return "playing"
	case MediaPause:
		return "pause"
	case MediaWaiting:
		return "waiting"
	case MediaEnded:
		return "ended"
	case MediaError:
		return "error"
	case MediaTimeUpdate:
		return "timeupdate"
	case MediaProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// MediaEvent is a notification from the media output.
type MediaEvent struct {
	Type     MediaEventType
	Gen      uint64        // Load that produced the event, as returned by Load
	Position time.Duration // MediaTimeUpdate
	Duration time.Duration // MediaLoadedMetadata
	Buffered float64       // MediaProgress, fraction 0..1
	Err      error         // MediaError
}

// MediaOutput is the single audio sink the engine drives.
//
// Implementations deliver events from their own goroutines and never invoke
// the handler from inside one of their methods.
type MediaOutput interface {
	// Load assigns a new resource and discards the previous one.
	// It returns the generation every later event of this resource carries.
	Load(src string) (uint64, error)
	// Play starts or resumes output. The channel yields exactly one value:
	// nil on success, ErrPlayAborted when superseded, or another error.
	Play() <-chan error
	Pause()
	Seek(pos time.Duration)
	// SetGain sets the effective output gain in [0, 1].
	SetGain(gain float64)
	Unload()
	Subscribe(handler func(MediaEvent))
}

// PlayReporter receives play-count telemetry.
type PlayReporter interface {
	RegisterPlayback(ctx context.Context, trackID string) error
}
