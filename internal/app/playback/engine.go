package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/domain/queue"
	"github.com/osa030/zora/internal/domain/track"
)

// Errors
var (
	ErrIndexOutOfRange = queue.ErrIndexOutOfRange
	ErrQueueEmpty      = errors.New("queue is empty")
	ErrClosed          = errors.New("engine is closed")
)

// Config holds engine configuration.
type Config struct {
	SkipInterval     time.Duration // Default offset for SkipForward/SkipBackward
	RestartThreshold time.Duration // Previous restarts the track past this position
	SeekWindow       time.Duration // Time updates are ignored this long after a seek
	DefaultVolume    int           // Initial volume before a preference is restored
	ReportTimeout    time.Duration // Deadline for play-count telemetry
}

// DefaultConfig returns the stock engine settings.
func DefaultConfig() Config {
	return Config{
		SkipInterval:     10 * time.Second,
		RestartThreshold: 3 * time.Second,
		SeekWindow:       100 * time.Millisecond,
		DefaultVolume:    70,
		ReportTimeout:    10 * time.Second,
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the time source used for the seeking window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithReporter registers play-count telemetry.
func WithReporter(r PlayReporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// WithShuffler replaces the random permutation used by shuffle.
func WithShuffler(s queue.Shuffler) Option {
	return func(e *Engine) { e.queue = queue.NewWithShuffler(s) }
}

// Engine owns the media output, the queue and the playback session.
// All mutations are serialized and applied in call order.
type Engine struct {
	mu sync.Mutex

	out   MediaOutput
	queue *queue.Queue

	// Session
	current  *track.Track
	state    State
	position time.Duration
	duration time.Duration
	buffered float64
	volume   int
	muted    bool
	premute  int
	repeat   RepeatMode

	// loadGen identifies the loaded resource; events of earlier loads are dropped.
	loadGen uint64

	// playID identifies the latest play attempt; older completions are discarded.
	playID        uint64
	playPending   bool
	autoplay      bool
	pendingResume *time.Duration
	seekingUntil  time.Time
	reported      bool

	config   Config
	now      func() time.Time
	reporter PlayReporter

	subs   map[string]chan Event
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates an engine driving out.
func NewEngine(out MediaOutput, config Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if config.SkipInterval <= 0 {
		config.SkipInterval = def.SkipInterval
	}
	if config.RestartThreshold <= 0 {
		config.RestartThreshold = def.RestartThreshold
	}
	if config.SeekWindow <= 0 {
		config.SeekWindow = def.SeekWindow
	}
	if config.ReportTimeout <= 0 {
		config.ReportTimeout = def.ReportTimeout
	}
	if config.DefaultVolume <= 0 {
		config.DefaultVolume = def.DefaultVolume
	}
	config.DefaultVolume = clampVolume(config.DefaultVolume)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		out:     out,
		queue:   queue.New(),
		state:   StateIdle,
		volume:  config.DefaultVolume,
		premute: config.DefaultVolume,
		config:  config,
		now:     time.Now,
		subs:    make(map[string]chan Event),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(e)
	}

	out.SetGain(e.gainLocked())
	out.Subscribe(e.handleMediaEvent)
	return e
}

// Subscribe registers an event listener and returns its ID and channel.
// Slow listeners lose events rather than blocking the engine.
func (e *Engine) Subscribe() (string, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan Event, 64)
	if e.closed {
		close(ch)
		return id, ch
	}
	e.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (e *Engine) Unsubscribe(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active listeners.
func (e *Engine) SubscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Close releases the output and closes all listener channels.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.cancel()
	e.cancelPlayLocked()
	e.out.Pause()
	e.out.Unload()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

// sendEventLocked fans an event out without blocking.
// Must be called with lock held.
func (e *Engine) sendEventLocked(t EventType) {
	ev := Event{Type: t, State: e.state}
	if e.current != nil {
		cur := *e.current
		ev.Track = &cur
	}
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		case <-e.ctx.Done():
			return
		default:
			// Listener is full, drop
		}
	}
}

// setStateLocked changes the state and emits EventStateChanged when it differs.
func (e *Engine) setStateLocked(s State) {
	if e.state == s {
		return
	}
	zlog.Debug().Msgf("playback: state %s -> %s", e.state, s)
	e.state = s
	e.sendEventLocked(EventStateChanged)
}

// loadLocked assigns t to the output and resets the session position.
// When autoplay is set, playback starts once the output reports it can play.
// Must be called with lock held.
func (e *Engine) loadLocked(t track.Track, autoplay bool) {
	e.cancelPlayLocked()
	e.current = &t
	e.position = 0
	e.duration = t.Duration
	e.buffered = 0
	e.pendingResume = nil
	e.seekingUntil = time.Time{}
	e.reported = false
	e.autoplay = autoplay

	zlog.Debug().Msgf("playback: loading track=%s title=%q autoplay=%v", t.ID, t.Title, autoplay)

	e.sendEventLocked(EventTrackChanged)
	gen, err := e.out.Load(t.PlayableURL)
	e.loadGen = gen
	if err != nil {
		zlog.Warn().Err(err).Msgf("playback: failed to load track=%s", t.ID)
		e.autoplay = false
		e.setStateLocked(StateError)
		return
	}
	e.setStateLocked(StateLoading)
}

// unloadLocked drops the current track and returns to idle.
// Must be called with lock held.
func (e *Engine) unloadLocked() {
	e.cancelPlayLocked()
	e.out.Pause()
	e.out.Unload()
	e.loadGen = 0
	e.current = nil
	e.position = 0
	e.duration = 0
	e.buffered = 0
	e.autoplay = false
	e.pendingResume = nil
	e.reported = false
	e.sendEventLocked(EventTrackChanged)
	e.setStateLocked(StateIdle)
}

// playLocked asks the output to play and applies the result asynchronously.
// Must be called with lock held.
func (e *Engine) playLocked() {
	if e.current == nil {
		return
	}
	e.autoplay = false
	e.out.SetGain(e.gainLocked())

	e.playID++
	e.playPending = true
	id := e.playID
	result := e.out.Play()
	go e.awaitPlay(id, result)
}

// cancelPlayLocked makes any outstanding play result stale.
func (e *Engine) cancelPlayLocked() {
	e.playID++
	e.playPending = false
}

func (e *Engine) awaitPlay(id uint64, result <-chan error) {
	var err error
	select {
	case err = <-result:
	case <-e.ctx.Done():
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || id != e.playID {
		zlog.Debug().Msgf("playback: discarding stale play result id=%d current=%d err=%v", id, e.playID, err)
		return
	}
	e.playPending = false

	switch {
	case err == nil:
		e.setStateLocked(StatePlaying)
	case errors.Is(err, ErrPlayAborted):
		zlog.Debug().Msg("playback: play aborted")
		if e.state != StateError {
			e.setStateLocked(StatePaused)
		}
	default:
		zlog.Warn().Err(err).Msg("playback: play rejected")
		e.setStateLocked(StateError)
	}
}

// handleMediaEvent applies an output notification to the session.
func (e *Engine) handleMediaEvent(ev MediaEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.current == nil {
		return
	}
	if ev.Gen != e.loadGen {
		zlog.Debug().Msgf("playback: dropping %s of load=%d current=%d", ev.Type, ev.Gen, e.loadGen)
		return
	}

	switch ev.Type {
	case MediaLoadStart:
		if e.state != StateError {
			e.setStateLocked(StateLoading)
		}

	case MediaLoadedMetadata:
		e.applyMetadataLocked(ev.Duration)

	case MediaCanPlay:
		if e.state == StateLoading {
			e.setStateLocked(StatePaused)
		}
		if e.autoplay {
			e.playLocked()
		}

	case MediaPlaying:
		e.setStateLocked(StatePlaying)
		e.reportLocked()

	case MediaPause:
		if e.state.IsActive() {
			e.setStateLocked(StatePaused)
		}

	case MediaWaiting:
		if e.state == StatePlaying {
			e.setStateLocked(StateBuffering)
		}

	case MediaEnded:
		e.setStateLocked(StateEnded)
		e.onTrackEndLocked()

	case MediaError:
		zlog.Warn().Err(ev.Err).Msgf("playback: media error track=%s", e.current.ID)
		e.cancelPlayLocked()
		e.autoplay = false
		e.setStateLocked(StateError)

	case MediaTimeUpdate:
		if e.now().Before(e.seekingUntil) {
			return
		}
		if ev.Position == e.position {
			return
		}
		e.position = ev.Position
		e.sendEventLocked(EventPositionChanged)

	case MediaProgress:
		e.buffered = ev.Buffered
		e.sendEventLocked(EventPositionChanged)
	}
}

// applyMetadataLocked records the real duration and applies any pending resume position.
func (e *Engine) applyMetadataLocked(d time.Duration) {
	if d > 0 {
		e.duration = d
		if e.current.Duration <= 0 {
			e.current.Duration = d
		}
		e.queue.SetCurrentDuration(d)
	}

	if e.pendingResume == nil {
		e.sendEventLocked(EventPositionChanged)
		return
	}

	pos := *e.pendingResume
	e.pendingResume = nil
	pos = e.clampPositionLocked(pos)
	e.position = pos
	e.seekingUntil = e.now().Add(e.config.SeekWindow)
	e.out.Seek(pos)

	zlog.Debug().Msgf("playback: resumed track=%s at %v", e.current.ID, pos)
	e.sendEventLocked(EventResumeApplied)
}

// onTrackEndLocked decides what follows a natural end.
// Must be called with lock held.
func (e *Engine) onTrackEndLocked() {
	switch {
	case e.repeat == RepeatOne:
		e.restartLocked(true)

	case e.repeat == RepeatAll && e.queue.IsLast():
		e.jumpLocked(0, true)

	case !e.queue.IsLast():
		e.jumpLocked(e.queue.Index()+1, true)

	default:
		zlog.Debug().Msg("playback: end of queue")
	}
}

// reportLocked fires play-count telemetry once per load.
func (e *Engine) reportLocked() {
	if e.reported || e.reporter == nil {
		return
	}
	e.reported = true

	id := e.current.ID
	reporter := e.reporter
	timeout := e.config.ReportTimeout
	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, timeout)
		defer cancel()
		if err := reporter.RegisterPlayback(ctx, id); err != nil {
			zlog.Debug().Err(err).Msgf("playback: failed to register playback track=%s", id)
		}
	}()
}

// gainLocked returns the effective output gain.
func (e *Engine) gainLocked() float64 {
	if e.muted || e.volume == 0 {
		return 0
	}
	return float64(e.volume) / 100
}

func (e *Engine) clampPositionLocked(pos time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if e.duration > 0 && pos > e.duration {
		return e.duration
	}
	return pos
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
