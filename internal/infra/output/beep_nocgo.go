//go:build !((linux && cgo) || windows || darwin)

package output

import (
	"time"
)

// BeepAvailable indicates whether the speaker output is supported in this build.
// The speaker requires cgo for native sound libraries.
const BeepAvailable = false

// BeepConfig configures the speaker output.
type BeepConfig struct {
	SampleRate int           `mapstructure:"sample_rate" default:"44100" validate:"gte=8000"`
	Timeout    time.Duration `mapstructure:"timeout" default:"30s" validate:"gt=0"`
	Tick       time.Duration `mapstructure:"tick" default:"250ms" validate:"gt=0"`
}

// Beep is unavailable without cgo.
type Beep struct {
	*Simulated
}

// NewBeep reports that the speaker output is unavailable.
func NewBeep(BeepConfig) (*Beep, error) {
	return nil, ErrUnavailable
}
