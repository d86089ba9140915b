package playback

import (
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Play starts or resumes playback of the current track.
// A track that is still loading starts once the output can play.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.current == nil {
		return
	}
	e.resumeLocked()
}

// resumeLocked starts the current track unless a play is already underway.
// Must be called with lock held.
func (e *Engine) resumeLocked() {
	if e.playPending {
		return
	}
	switch e.state {
	case StatePlaying, StateBuffering:
		return
	case StateLoading:
		e.autoplay = true
		return
	case StateEnded:
		e.seekLocked(0)
	}
	e.playLocked()
}

// Pause pauses playback.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.current == nil {
		return
	}
	e.pauseLocked()
}

func (e *Engine) pauseLocked() {
	e.cancelPlayLocked()
	e.autoplay = false
	e.out.Pause()
	if e.state != StateIdle && e.state != StateError {
		e.setStateLocked(StatePaused)
	}
}

// TogglePlayPause pauses when playing, plays otherwise.
func (e *Engine) TogglePlayPause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.current == nil {
		return
	}
	if e.isActiveLocked() {
		e.pauseLocked()
		return
	}
	e.resumeLocked()
}

// Stop pauses, rewinds to 0 and returns to idle. The queue is kept.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.current == nil {
		return
	}
	e.cancelPlayLocked()
	e.autoplay = false
	e.out.Pause()
	e.seekLocked(0)
	e.setStateLocked(StateIdle)
}

// Seek moves to pos, clamped to the known duration.
// The position updates immediately; output time reports are ignored for a short window.
func (e *Engine) Seek(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.current == nil {
		return
	}
	e.seekLocked(pos)
}

func (e *Engine) seekLocked(pos time.Duration) {
	pos = e.clampPositionLocked(pos)
	e.position = pos
	e.seekingUntil = e.now().Add(e.config.SeekWindow)
	e.out.Seek(pos)
	e.sendEventLocked(EventPositionChanged)
}

// SkipForward seeks d ahead. A non-positive d uses the configured interval.
func (e *Engine) SkipForward(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.current == nil {
		return
	}
	if d <= 0 {
		d = e.config.SkipInterval
	}
	e.seekLocked(e.position + d)
}

// SkipBackward seeks d back. A non-positive d uses the configured interval.
func (e *Engine) SkipBackward(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.current == nil {
		return
	}
	if d <= 0 {
		d = e.config.SkipInterval
	}
	e.seekLocked(e.position - d)
}

// restartLocked rewinds the current track. An ended track, or keepPlaying, plays again.
func (e *Engine) restartLocked(keepPlaying bool) {
	e.seekLocked(0)
	if keepPlaying || e.state == StateEnded {
		e.playLocked()
	}
}

// SetVolume sets the volume in [0, 100]. A positive value unmutes.
func (e *Engine) SetVolume(v int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.setVolumeLocked(v)
}

func (e *Engine) setVolumeLocked(v int) {
	e.volume = clampVolume(v)
	if e.volume > 0 && e.muted {
		e.muted = false
	}
	e.out.SetGain(e.gainLocked())
	e.sendEventLocked(EventVolumeChanged)
}

// ChangeVolume adjusts the volume by delta.
func (e *Engine) ChangeVolume(delta int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.setVolumeLocked(e.volume + delta)
}

// ToggleMute mutes, or unmutes back to the volume held before muting.
func (e *Engine) ToggleMute() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if e.muted {
		e.muted = false
		e.setVolumeLocked(e.premute)
		return
	}
	e.premute = e.volume
	e.muted = true
	e.out.SetGain(e.gainLocked())
	e.sendEventLocked(EventVolumeChanged)
}

// RestoreVolume applies a persisted volume preference.
func (e *Engine) RestoreVolume(v int, muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.volume = clampVolume(v)
	e.premute = e.volume
	e.muted = muted
	e.out.SetGain(e.gainLocked())
	zlog.Debug().Msgf("playback: restored volume=%d muted=%v", e.volume, e.muted)
	e.sendEventLocked(EventVolumeChanged)
}

// ToggleShuffle flips shuffle without interrupting the current track.
func (e *Engine) ToggleShuffle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	on := e.queue.ToggleShuffle()
	zlog.Debug().Msgf("playback: shuffle=%v", on)
	e.sendEventLocked(EventModeChanged)
	e.sendEventLocked(EventQueueChanged)
}

// ToggleRepeat cycles off, all, one.
func (e *Engine) ToggleRepeat() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.repeat = e.repeat.Next()
	e.sendEventLocked(EventModeChanged)
}

// SetRepeatMode sets the repeat mode directly.
func (e *Engine) SetRepeatMode(m RepeatMode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if m < RepeatOff || m > RepeatOne {
		m = RepeatOff
	}
	e.repeat = m
	e.sendEventLocked(EventModeChanged)
}
