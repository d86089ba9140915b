package resume

import (
	"context"
	"math"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/app/playback"
	"github.com/osa030/zora/internal/domain/snapshot"
	"github.com/osa030/zora/internal/domain/track"
)

// DefaultMinDelta is the position change below which a snapshot write is skipped.
const DefaultMinDelta = 500 * time.Millisecond

// Source is the read-only view of the engine the writer consumes.
type Source interface {
	Subscribe() (string, <-chan playback.Event)
	Unsubscribe(id string)
	Status() playback.Status
}

// SnapshotSaver persists resume snapshots and volume preferences.
type SnapshotSaver interface {
	SaveSnapshot(user string, r snapshot.Resume)
	SaveVolume(v snapshot.Volume)
}

// Writer persists the engine session on every meaningful change.
type Writer struct {
	mu       sync.Mutex
	source   Source
	saver    SnapshotSaver
	user     string
	minDelta time.Duration
	now      func() time.Time

	last       *written
	lastVolume *snapshot.Volume
}

type written struct {
	songID    string
	position  time.Duration
	isPlaying bool
}

// NewWriter creates a writer for user. A non-positive minDelta uses DefaultMinDelta.
func NewWriter(source Source, saver SnapshotSaver, user string, minDelta time.Duration) *Writer {
	if minDelta <= 0 {
		minDelta = DefaultMinDelta
	}
	return &Writer{
		source:   source,
		saver:    saver,
		user:     user,
		minDelta: minDelta,
		now:      time.Now,
	}
}

// SetUser switches the identity snapshots are written for and forgets the last write.
func (w *Writer) SetUser(user string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.user = user
	w.last = nil
}

// Run consumes engine events until ctx is done or the engine closes.
func (w *Writer) Run(ctx context.Context) {
	id, events := w.source.Subscribe()
	defer w.source.Unsubscribe(id)

	zlog.Debug().Msgf("resume: snapshot writer started user=%s", w.user)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handle(ev)
		}
	}
}

func (w *Writer) handle(ev playback.Event) {
	status := w.source.Status()
	if ev.Type == playback.EventVolumeChanged {
		w.saveVolume(status)
		return
	}
	w.saveSnapshot(status)
}

func (w *Writer) saveVolume(s playback.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := snapshot.Volume{Volume: s.Volume, IsMuted: s.Muted}
	if w.lastVolume != nil && *w.lastVolume == v {
		return
	}
	w.lastVolume = &v
	w.saver.SaveVolume(v)
}

func (w *Writer) saveSnapshot(s playback.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.user == "" || s.Track == nil {
		return
	}

	cur := written{
		songID:    s.Track.ID,
		position:  s.Position,
		isPlaying: s.IsPlaying(),
	}
	if w.last != nil &&
		w.last.songID == cur.songID &&
		w.last.isPlaying == cur.isPlaying &&
		math.Abs(float64(cur.position-w.last.position)) < float64(w.minDelta) {
		return
	}
	w.last = &cur

	w.saver.SaveSnapshot(w.user, snapshot.Resume{
		SongID:            s.Track.ID,
		Position:          snapshot.ToSeconds(s.Position),
		Duration:          snapshot.ToSeconds(s.Duration),
		IsPlaying:         cur.isPlaying,
		QueueSongIDs:      track.IDs(s.Queue),
		CurrentQueueIndex: s.Index,
		PlaybackContext:   s.Context.String(),
		UpdatedAt:         w.now().UnixMilli(),
	})
}
