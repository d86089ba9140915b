//go:build (linux && cgo) || windows || darwin

package output

import (
	"bytes"
	"context"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/app/playback"
)

// BeepAvailable indicates whether the speaker output is supported in this build.
const BeepAvailable = true

// BeepConfig configures the speaker output.
type BeepConfig struct {
	SampleRate int           `mapstructure:"sample_rate" default:"44100" validate:"gte=8000"`
	Timeout    time.Duration `mapstructure:"timeout" default:"30s" validate:"gt=0"`
	Tick       time.Duration `mapstructure:"tick" default:"250ms" validate:"gt=0"`
}

// Beep decodes MP3 resources and plays them on the system speaker.
type Beep struct {
	mu     sync.Mutex
	events *dispatcher
	client *http.Client

	sampleRate beep.SampleRate
	tick       time.Duration

	gen      uint64
	cancel   context.CancelFunc
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	gain     float64
	queued   bool // The sequence is on the speaker
	playing  bool
	pending  chan error
	stop     chan struct{}
}

var _ Output = (*Beep)(nil)

// NewBeep initializes the speaker.
func NewBeep(config BeepConfig) (*Beep, error) {
	sr := beep.SampleRate(config.SampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, errors.Wrap(err, "failed to initialize speaker")
	}
	return &Beep{
		events:     newDispatcher(),
		client:     &http.Client{Timeout: config.Timeout},
		sampleRate: sr,
		tick:       config.Tick,
		gain:       1,
	}, nil
}

// Subscribe registers the media event handler.
func (b *Beep) Subscribe(handler func(playback.MediaEvent)) {
	b.events.subscribe(handler)
}

// Load fetches and decodes src in the background.
func (b *Beep) Load(src string) (uint64, error) {
	if src == "" {
		return 0, ErrNotLoaded
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseLocked()
	b.gen++
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.events.emitType(b.gen, playback.MediaLoadStart)
	go b.fetch(ctx, b.gen, src)
	return b.gen, nil
}

func (b *Beep) fetch(ctx context.Context, gen uint64, src string) {
	data, err := b.read(ctx, src)
	if err != nil {
		b.fail(gen, errors.Wrapf(err, "failed to fetch %s", src))
		return
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		b.fail(gen, errors.Wrapf(err, "failed to decode %s", src))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		streamer.Close()
		return
	}

	b.streamer = streamer
	b.format = format
	b.ctrl = &beep.Ctrl{Streamer: beep.Resample(4, format.SampleRate, b.sampleRate, streamer), Paused: true}
	b.volume = &effects.Volume{Streamer: b.ctrl, Base: 2}
	b.applyGainLocked()

	b.events.emit(b.gen, playback.MediaEvent{
		Type:     playback.MediaLoadedMetadata,
		Duration: format.SampleRate.D(streamer.Len()),
	})
	b.events.emitType(b.gen, playback.MediaCanPlay)
	b.events.emit(b.gen, playback.MediaEvent{Type: playback.MediaProgress, Buffered: 1})

	if b.pending != nil {
		ch := b.pending
		b.pending = nil
		b.startLocked()
		ch <- nil
	}
}

func (b *Beep) read(ctx context.Context, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.ReadFile(strings.TrimPrefix(src, "file://"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *Beep) fail(gen uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	zlog.Warn().Err(err).Msg("output: beep load failed")
	b.abortPendingLocked()
	b.events.emit(b.gen, playback.MediaEvent{Type: playback.MediaError, Err: err})
}

// Play resumes the speaker. A play issued before decoding finishes waits for it.
func (b *Beep) Play() <-chan error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan error, 1)
	switch {
	case b.cancel == nil:
		ch <- ErrNotLoaded
	case b.streamer == nil:
		b.abortPendingLocked()
		b.pending = ch
	case b.playing:
		ch <- nil
	default:
		b.startLocked()
		ch <- nil
	}
	return ch
}

func (b *Beep) startLocked() {
	if !b.queued {
		speaker.Lock()
		if b.streamer.Position() >= b.streamer.Len() {
			_ = b.streamer.Seek(0)
		}
		speaker.Unlock()
		gen := b.gen
		b.queued = true
		speaker.Play(beep.Seq(b.volume, beep.Callback(func() {
			go b.finished(gen)
		})))
	}

	speaker.Lock()
	b.ctrl.Paused = false
	speaker.Unlock()

	b.playing = true
	b.stop = make(chan struct{})
	b.events.emitType(b.gen, playback.MediaPlaying)
	go b.report(b.gen, b.stop)
}

// report emits time updates while playing.
func (b *Beep) report(gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		if gen != b.gen || b.streamer == nil {
			b.mu.Unlock()
			return
		}
		b.events.emit(b.gen, playback.MediaEvent{Type: playback.MediaTimeUpdate, Position: b.positionLocked()})
		b.mu.Unlock()
	}
}

func (b *Beep) finished(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return
	}
	b.queued = false
	b.stopLocked()
	b.events.emit(b.gen, playback.MediaEvent{Type: playback.MediaTimeUpdate, Position: b.positionLocked()})
	b.events.emitType(b.gen, playback.MediaEnded)
}

// Pause pauses the speaker.
func (b *Beep) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.abortPendingLocked()
	if !b.playing {
		return
	}
	speaker.Lock()
	b.ctrl.Paused = true
	speaker.Unlock()
	b.stopLocked()
	b.events.emitType(b.gen, playback.MediaPause)
}

// Seek moves the decoder position.
func (b *Beep) Seek(pos time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.streamer == nil {
		return
	}

	n := min(max(b.format.SampleRate.N(pos), 0), b.streamer.Len())
	speaker.Lock()
	err := b.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		zlog.Warn().Err(err).Msgf("output: beep seek to %v failed", pos)
		return
	}
	b.events.emit(b.gen, playback.MediaEvent{Type: playback.MediaTimeUpdate, Position: b.positionLocked()})
}

// SetGain sets the output gain in [0, 1].
func (b *Beep) SetGain(gain float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gain = gain
	b.applyGainLocked()
}

func (b *Beep) applyGainLocked() {
	if b.volume == nil {
		return
	}
	speaker.Lock()
	defer speaker.Unlock()

	if b.gain <= 0 {
		b.volume.Silent = true
		return
	}
	b.volume.Silent = false
	b.volume.Volume = math.Log2(b.gain)
}

// Unload stops playback and releases the decoder.
func (b *Beep) Unload() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseLocked()
	b.gen++
}

// Close releases the speaker.
func (b *Beep) Close() error {
	b.Unload()
	speaker.Clear()
	b.events.close()
	return nil
}

func (b *Beep) positionLocked() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	return b.format.SampleRate.D(b.streamer.Position())
}

func (b *Beep) releaseLocked() {
	b.abortPendingLocked()
	b.stopLocked()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if b.queued {
		speaker.Clear()
		b.queued = false
	}
	if b.streamer != nil {
		b.streamer.Close()
		b.streamer = nil
	}
	b.ctrl = nil
	b.volume = nil
}

func (b *Beep) abortPendingLocked() {
	if b.pending != nil {
		b.pending <- playback.ErrPlayAborted
		b.pending = nil
	}
}

func (b *Beep) stopLocked() {
	if b.stop != nil {
		close(b.stop)
		b.stop = nil
	}
	b.playing = false
}
