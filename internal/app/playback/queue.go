package playback

import (
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/domain/queue"
	"github.com/osa030/zora/internal/domain/track"
)

// SetQueue replaces the queue with a playlist-context session starting at start (clamped).
// An empty list clears the queue. With autoplay, playback starts once the track can play.
func (e *Engine) SetQueue(tracks []track.Track, start int, autoplay bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.setQueueLocked(tracks, start, autoplay, queue.ContextPlaylist)
}

// PlaySingle plays t in isolation as a one-track queue.
func (e *Engine) PlaySingle(t track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.setQueueLocked([]track.Track{t}, 0, true, queue.ContextSingle)
}

// PlayContext plays tracks as a playlist starting at index.
func (e *Engine) PlayContext(tracks []track.Track, index int) {
	e.SetQueue(tracks, index, true)
}

func (e *Engine) setQueueLocked(tracks []track.Track, start int, autoplay bool, ctx queue.Context) {
	wasShuffled := e.queue.Shuffled()
	if !e.queue.Set(tracks, start, ctx) {
		e.clearLocked()
		return
	}
	if wasShuffled {
		e.sendEventLocked(EventModeChanged)
	}
	e.sendEventLocked(EventQueueChanged)

	cur, _ := e.queue.Current()
	e.loadLocked(cur, autoplay)
}

// AddToQueue appends tracks. On an empty queue a single track starts playing
// as a single-context queue, and several start as a playlist.
func (e *Engine) AddToQueue(tracks ...track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || len(tracks) == 0 {
		return
	}

	if e.queue.IsEmpty() {
		ctx := queue.ContextPlaylist
		if len(tracks) == 1 {
			ctx = queue.ContextSingle
		}
		e.setQueueLocked(tracks, 0, true, ctx)
		return
	}

	e.queue.Append(tracks...)
	if e.queue.Len() > 1 {
		e.queue.SetContext(queue.ContextPlaylist)
	}
	e.sendEventLocked(EventQueueChanged)
}

// RemoveFromQueue removes the track at index.
// Removing the current track loads whichever track takes its slot;
// removing the last remaining track clears the queue.
func (e *Engine) RemoveFromQueue(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	wasActive := e.isActiveLocked()
	wasCurrent, err := e.queue.Remove(index)
	if err != nil {
		zlog.Debug().Msgf("playback: ignoring remove of index=%d len=%d", index, e.queue.Len())
		return err
	}

	if e.queue.IsEmpty() {
		e.clearLocked()
		return nil
	}

	e.sendEventLocked(EventQueueChanged)
	if wasCurrent {
		cur, _ := e.queue.Current()
		e.loadLocked(cur, wasActive)
	}
	return nil
}

// MoveInQueue moves the track at from to position to.
func (e *Engine) MoveInQueue(from, to int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.queue.Move(from, to); err != nil {
		return err
	}
	e.sendEventLocked(EventQueueChanged)
	return nil
}

// ClearQueue stops playback and empties the queue. Shuffle is turned off.
func (e *Engine) ClearQueue() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.clearLocked()
}

func (e *Engine) clearLocked() {
	wasShuffled := e.queue.Shuffled()
	e.queue.Clear()
	e.unloadLocked()
	if wasShuffled {
		e.sendEventLocked(EventModeChanged)
	}
	e.sendEventLocked(EventQueueChanged)
}

// JumpToIndex loads the track at index, continuing playback if it was playing.
func (e *Engine) JumpToIndex(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if index < 0 || index >= e.queue.Len() {
		return ErrIndexOutOfRange
	}
	e.jumpLocked(index, e.isActiveLocked())
	return nil
}

func (e *Engine) jumpLocked(index int, autoplay bool) {
	if err := e.queue.SetIndex(index); err != nil {
		return
	}
	cur, _ := e.queue.Current()
	e.loadLocked(cur, autoplay)
}

// isActiveLocked reports whether playback is running or about to.
func (e *Engine) isActiveLocked() bool {
	return e.state.IsActive() || e.playPending || (e.state == StateLoading && e.autoplay)
}

// isLoneSingleLocked reports whether the queue is one track played in isolation.
func (e *Engine) isLoneSingleLocked() bool {
	return e.queue.Context() == queue.ContextSingle && e.queue.Len() == 1
}

// Next advances to the following track, wrapping under repeat all.
// A lone single-context track restarts. At the end of the queue playback stops in place.
func (e *Engine) Next() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.queue.IsEmpty() {
		return
	}

	next := e.queue.Index() + 1
	switch {
	case next < e.queue.Len():
		e.jumpLocked(next, e.isActiveLocked())
	case e.repeat == RepeatAll:
		e.jumpLocked(0, e.isActiveLocked())
	case e.isLoneSingleLocked():
		e.restartLocked(false)
	default:
		if e.isActiveLocked() || e.state == StateLoading {
			e.pauseLocked()
		}
		e.autoplay = false
	}
}

// Previous restarts the track once past the restart threshold, otherwise
// moves back one track, wrapping under repeat all.
func (e *Engine) Previous() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.queue.IsEmpty() {
		return
	}

	prev := e.queue.Index() - 1
	switch {
	case e.position > e.config.RestartThreshold:
		e.seekLocked(0)
	case e.isLoneSingleLocked():
		e.restartLocked(false)
	case prev >= 0:
		e.jumpLocked(prev, e.isActiveLocked())
	case e.repeat == RepeatAll:
		e.jumpLocked(e.queue.Len()-1, e.isActiveLocked())
	}
}

// RestoreRequest seeds the engine from a persisted session.
type RestoreRequest struct {
	Tracks      []track.Track
	Index       int
	Context     queue.Context
	Position    time.Duration // Applied once the output reports metadata
	WantPlaying bool
}

// Restore seeds the queue from a persisted session. The position is held
// until the output reports metadata and is clamped against the real duration.
// With WantPlaying, playback starts once the track can play.
func (e *Engine) Restore(req RestoreRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if len(req.Tracks) == 0 {
		return ErrQueueEmpty
	}

	e.setQueueLocked(req.Tracks, req.Index, req.WantPlaying, req.Context)
	if e.current == nil {
		return ErrQueueEmpty
	}

	pos := req.Position
	if pos < 0 {
		pos = 0
	}
	e.pendingResume = &pos
	e.position = e.clampPositionLocked(pos)
	e.sendEventLocked(EventPositionChanged)

	zlog.Info().Msgf("playback: restored queue len=%d index=%d position=%v playing=%v",
		e.queue.Len(), e.queue.Index(), pos, req.WantPlaying)
	return nil
}

// CurrentTrack returns the loaded track.
func (e *Engine) CurrentTrack() (track.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return track.Track{}, false
	}
	return *e.current, true
}

// State returns the playback state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status is a read-only snapshot of the engine.
type Status struct {
	Track         *track.Track
	State         State
	Position      time.Duration
	Duration      time.Duration
	Buffered      float64
	Volume        int
	Muted         bool
	Gain          float64
	Repeat        RepeatMode
	Shuffled      bool
	Index         int
	Queue         []track.Track
	Context       queue.Context
	PendingResume *time.Duration
	Starting      bool // A play request is outstanding or queued for when the track can play
}

// IsPlaying reports whether the status counts as playing for persistence.
func (s Status) IsPlaying() bool {
	return s.State.IsActive() || s.Starting
}

// Status returns a copy of the current session.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		State:    e.state,
		Position: e.position,
		Duration: e.duration,
		Buffered: e.buffered,
		Volume:   e.volume,
		Muted:    e.muted,
		Gain:     e.gainLocked(),
		Repeat:   e.repeat,
		Shuffled: e.queue.Shuffled(),
		Index:    e.queue.Index(),
		Queue:    e.queue.Tracks(),
		Context:  e.queue.Context(),
		Starting: e.playPending || (e.state == StateLoading && e.autoplay),
	}
	if e.current != nil {
		cur := *e.current
		s.Track = &cur
	}
	if e.pendingResume != nil {
		p := *e.pendingResume
		s.PendingResume = &p
	}
	return s
}
