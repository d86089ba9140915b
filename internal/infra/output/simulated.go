package output

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/app/playback"
)

// SimulatedConfig configures the clock-driven output.
type SimulatedConfig struct {
	Duration  time.Duration `mapstructure:"duration" default:"3m" validate:"gt=0"`
	Tick      time.Duration `mapstructure:"tick" default:"250ms" validate:"gt=0"`
	LoadDelay time.Duration `mapstructure:"load_delay" default:"50ms" validate:"gte=0"`
}

// Simulated plays virtual resources of a fixed length without producing audio.
type Simulated struct {
	mu     sync.Mutex
	events *dispatcher
	config SimulatedConfig

	src      string
	gen      uint64
	ready    bool
	playing  bool
	position time.Duration
	gain     float64
	pending  chan error
	stop     chan struct{}
}

var _ Output = (*Simulated)(nil)

// NewSimulated creates a simulated output.
func NewSimulated(config SimulatedConfig) *Simulated {
	return &Simulated{
		events: newDispatcher(),
		config: config,
		gain:   1,
	}
}

// Subscribe registers the media event handler.
func (s *Simulated) Subscribe(handler func(playback.MediaEvent)) {
	s.events.subscribe(handler)
}

// Load assigns a new virtual resource.
func (s *Simulated) Load(src string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.gen++
	s.src = src
	s.ready = false
	s.position = 0

	s.events.emitType(s.gen, playback.MediaLoadStart)
	go s.prepare(s.gen)
	return s.gen, nil
}

func (s *Simulated) prepare(gen uint64) {
	if s.config.LoadDelay > 0 {
		time.Sleep(s.config.LoadDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	s.ready = true
	s.events.emit(s.gen, playback.MediaEvent{Type: playback.MediaLoadedMetadata, Duration: s.config.Duration})
	s.events.emitType(s.gen, playback.MediaCanPlay)
	s.events.emit(s.gen, playback.MediaEvent{Type: playback.MediaProgress, Buffered: 1})

	if s.pending != nil {
		ch := s.pending
		s.pending = nil
		s.startLocked()
		ch <- nil
	}
}

// Play starts the clock. A play issued before the resource is ready waits for it.
func (s *Simulated) Play() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan error, 1)
	switch {
	case s.src == "":
		ch <- ErrNotLoaded
	case !s.ready:
		s.abortPendingLocked()
		s.pending = ch
	case s.playing:
		ch <- nil
	default:
		if s.position >= s.config.Duration {
			s.position = 0
		}
		s.startLocked()
		ch <- nil
	}
	return ch
}

func (s *Simulated) startLocked() {
	s.playing = true
	s.stop = make(chan struct{})
	s.events.emitType(s.gen, playback.MediaPlaying)
	go s.run(s.gen, s.stop)
}

func (s *Simulated) run(gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if gen != s.gen || !s.playing {
			s.mu.Unlock()
			return
		}
		s.position += s.config.Tick
		if s.position >= s.config.Duration {
			s.position = s.config.Duration
			s.playing = false
			s.stop = nil
			s.events.emit(s.gen, playback.MediaEvent{Type: playback.MediaTimeUpdate, Position: s.position})
			s.events.emitType(s.gen, playback.MediaEnded)
			s.mu.Unlock()
			zlog.Debug().Msgf("output: simulated resource ended src=%s", s.src)
			return
		}
		s.events.emit(s.gen, playback.MediaEvent{Type: playback.MediaTimeUpdate, Position: s.position})
		s.mu.Unlock()
	}
}

// Pause stops the clock.
func (s *Simulated) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abortPendingLocked()
	if s.playing {
		s.stopLocked()
		s.events.emitType(s.gen, playback.MediaPause)
	}
}

// Seek moves the virtual position.
func (s *Simulated) Seek(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.src == "" {
		return
	}
	s.position = min(max(pos, 0), s.config.Duration)
	s.events.emit(s.gen, playback.MediaEvent{Type: playback.MediaTimeUpdate, Position: s.position})
}

// SetGain records the gain.
func (s *Simulated) SetGain(gain float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gain = gain
}

// Gain returns the last gain set.
func (s *Simulated) Gain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

// Unload discards the resource.
func (s *Simulated) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.gen++
	s.src = ""
	s.ready = false
	s.position = 0
}

// Close releases the output.
func (s *Simulated) Close() error {
	s.Unload()
	s.events.close()
	return nil
}

func (s *Simulated) resetLocked() {
	s.abortPendingLocked()
	s.stopLocked()
}

func (s *Simulated) abortPendingLocked() {
	if s.pending != nil {
		s.pending <- playback.ErrPlayAborted
		s.pending = nil
	}
}

func (s *Simulated) stopLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.playing = false
}
