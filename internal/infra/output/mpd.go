package output

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fhs/gompd/v2/mpd"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/app/playback"
)

// MPDConfig configures the MPD output.
type MPDConfig struct {
	Addr     string        `mapstructure:"addr" default:"localhost:6600" validate:"required"`
	Password string        `mapstructure:"password"`
	Poll     time.Duration `mapstructure:"poll" default:"500ms" validate:"gt=0"`
}

// MPD plays resources through a Music Player Daemon using a one-entry queue.
type MPD struct {
	mu      sync.Mutex
	events  *dispatcher
	client  *mpd.Client
	watcher *mpd.Watcher
	config  MPDConfig

	gen     uint64
	loaded  bool
	playing bool
	seekTo  time.Duration // Applied on the next play from stop
	done    chan struct{}
}

var _ Output = (*MPD)(nil)

// NewMPD connects to the daemon and starts watching the player subsystem.
func NewMPD(config MPDConfig) (*MPD, error) {
	zlog.Info().Msgf("output: connecting to MPD addr=%s", config.Addr)

	client, err := mpd.Dial("tcp", config.Addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MPD")
	}
	if config.Password != "" {
		if err := client.Command("password %s", config.Password).OK(); err != nil {
			client.Close()
			return nil, errors.Wrap(err, "MPD authentication failed")
		}
	}

	watcher, err := mpd.NewWatcher("tcp", config.Addr, config.Password, "player")
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to create MPD watcher")
	}

	m := &MPD{
		events:  newDispatcher(),
		client:  client,
		watcher: watcher,
		config:  config,
		done:    make(chan struct{}),
	}
	go m.watch()
	go m.poll()
	return m, nil
}

// Subscribe registers the media event handler.
func (m *MPD) Subscribe(handler func(playback.MediaEvent)) {
	m.events.subscribe(handler)
}

// Load replaces the daemon queue with src.
func (m *MPD) Load(src string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playing = false
	m.loaded = false
	m.seekTo = 0
	m.gen++

	if err := m.client.Clear(); err != nil {
		return m.gen, errors.Wrap(err, "failed to clear MPD queue")
	}
	if err := m.client.Add(src); err != nil {
		return m.gen, errors.Wrapf(err, "failed to add %s", src)
	}
	m.loaded = true

	m.events.emitType(m.gen, playback.MediaLoadStart)
	go m.describe(m.gen)
	return m.gen, nil
}

// describe reports the duration the daemon knows for the queued resource.
func (m *MPD) describe(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}

	var duration time.Duration
	songs, err := m.client.PlaylistInfo(-1, -1)
	if err != nil {
		zlog.Warn().Err(err).Msg("output: failed to read MPD queue")
	} else if len(songs) > 0 {
		duration = parseSeconds(songs[0]["duration"])
		if duration == 0 {
			duration = parseSeconds(songs[0]["Time"])
		}
	}

	m.events.emit(m.gen, playback.MediaEvent{Type: playback.MediaLoadedMetadata, Duration: duration})
	m.events.emitType(m.gen, playback.MediaCanPlay)
}

// Play starts or resumes the daemon.
func (m *MPD) Play() <-chan error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan error, 1)
	if !m.loaded {
		ch <- ErrNotLoaded
		return ch
	}
	if m.playing {
		ch <- nil
		return ch
	}

	status, err := m.client.Status()
	if err != nil {
		ch <- errors.Wrap(err, "failed to read MPD status")
		return ch
	}

	if status["state"] == "pause" {
		err = m.client.Pause(false)
	} else {
		err = m.client.Play(0)
		if err == nil && m.seekTo > 0 {
			err = m.client.Seek(0, int(m.seekTo.Seconds()))
		}
	}
	if err != nil {
		ch <- errors.Wrap(err, "MPD refused to play")
		return ch
	}

	m.seekTo = 0
	m.playing = true
	m.events.emitType(m.gen, playback.MediaPlaying)
	ch <- nil
	return ch
}

// Pause pauses the daemon.
func (m *MPD) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.playing {
		return
	}
	if err := m.client.Pause(true); err != nil {
		zlog.Warn().Err(err).Msg("output: MPD pause failed")
		return
	}
	m.playing = false
	m.events.emitType(m.gen, playback.MediaPause)
}

// Seek moves within the queued resource.
func (m *MPD) Seek(pos time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return
	}
	pos = max(pos, 0)

	status, err := m.client.Status()
	if err != nil {
		zlog.Warn().Err(err).Msg("output: failed to read MPD status")
		return
	}
	if status["state"] == "stop" {
		// Seeking a stopped daemon would start it.
		m.seekTo = pos
	} else if err := m.client.Seek(0, int(pos.Seconds())); err != nil {
		zlog.Warn().Err(err).Msgf("output: MPD seek to %v failed", pos)
		return
	}
	m.events.emit(m.gen, playback.MediaEvent{Type: playback.MediaTimeUpdate, Position: pos})
}

// SetGain sets the daemon volume. Daemons without a mixer ignore it.
func (m *MPD) SetGain(gain float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vol := int(math.Round(min(max(gain, 0), 1) * 100))
	if err := m.client.SetVolume(vol); err != nil {
		zlog.Debug().Err(err).Msgf("output: MPD volume=%d not applied", vol)
	}
}

// Unload clears the daemon queue.
func (m *MPD) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.playing = false
	m.loaded = false
	m.seekTo = 0
	if err := m.client.Clear(); err != nil {
		zlog.Warn().Err(err).Msg("output: failed to clear MPD queue")
	}
}

// Close disconnects from the daemon.
func (m *MPD) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	default:
	}
	close(m.done)
	m.events.close()

	if err := m.watcher.Close(); err != nil {
		zlog.Debug().Err(err).Msg("output: failed to close MPD watcher")
	}
	return m.client.Close()
}

// watch turns player subsystem changes made outside the engine into media events.
func (m *MPD) watch() {
	for {
		select {
		case <-m.done:
			return
		case subsystem, ok := <-m.watcher.Event:
			if !ok {
				return
			}
			if subsystem == "player" {
				m.syncState()
			}
		case err, ok := <-m.watcher.Error:
			if !ok {
				return
			}
			zlog.Warn().Err(err).Msg("output: MPD watcher error")
		}
	}
}

func (m *MPD) syncState() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return
	}
	status, err := m.client.Status()
	if err != nil {
		zlog.Warn().Err(err).Msg("output: failed to read MPD status")
		return
	}

	switch status["state"] {
	case "stop":
		if m.playing {
			m.playing = false
			m.events.emitType(m.gen, playback.MediaEnded)
		}
	case "pause":
		if m.playing {
			m.playing = false
			m.events.emitType(m.gen, playback.MediaPause)
		}
	case "play":
		if !m.playing {
			m.playing = true
			m.events.emitType(m.gen, playback.MediaPlaying)
		}
	}
}

// poll reports the elapsed time while playing.
func (m *MPD) poll() {
	ticker := time.NewTicker(m.config.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		if m.playing {
			if status, err := m.client.Status(); err == nil {
				m.events.emit(m.gen, playback.MediaEvent{
					Type:     playback.MediaTimeUpdate,
					Position: parseSeconds(status["elapsed"]),
				})
			}
		}
		m.mu.Unlock()
	}
}

// parseSeconds parses fractional seconds. For an "elapsed:total" pair it returns the total.
func parseSeconds(s string) time.Duration {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
