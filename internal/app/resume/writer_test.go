package resume

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/zora/internal/app/playback"
	"github.com/osa030/zora/internal/domain/queue"
	"github.com/osa030/zora/internal/domain/snapshot"
	"github.com/osa030/zora/internal/domain/track"
	"github.com/osa030/zora/internal/infra/prefstore"
)

type fakeSource struct {
	mu     sync.Mutex
	status playback.Status
	events chan playback.Event
	unsub  []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan playback.Event, 16)}
}

func (f *fakeSource) Subscribe() (string, <-chan playback.Event) {
	return "sub-1", f.events
}

func (f *fakeSource) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsub = append(f.unsub, id)
}

func (f *fakeSource) Status() playback.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSource) set(s playback.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

type fakeSaver struct {
	mu        sync.Mutex
	snapshots []snapshot.Resume
	volumes   []snapshot.Volume
}

func (f *fakeSaver) SaveSnapshot(_ string, r snapshot.Resume) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, r)
}

func (f *fakeSaver) SaveVolume(v snapshot.Volume) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, v)
}

func (f *fakeSaver) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

func playingStatus(id string, pos time.Duration, state playback.State) playback.Status {
	queueTracks := []track.Track{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	var cur track.Track
	index := 0
	for i, t := range queueTracks {
		if t.ID == id {
			cur = t
			index = i
		}
	}
	cur.Duration = 45 * time.Second
	return playback.Status{
		Track:    &cur,
		State:    state,
		Position: pos,
		Duration: 45 * time.Second,
		Index:    index,
		Queue:    queueTracks,
		Context:  queue.ContextPlaylist,
		Volume:   70,
	}
}

func TestWriter_Throttle(t *testing.T) {
	tests := []struct {
		name   string
		second playback.Status
		writes int
	}{
		{name: "small delta is skipped", second: playingStatus("B", 12400*time.Millisecond, playback.StatePlaying), writes: 1},
		{name: "large delta is written", second: playingStatus("B", 13*time.Second, playback.StatePlaying), writes: 2},
		{name: "backwards seek is written", second: playingStatus("B", 2*time.Second, playback.StatePlaying), writes: 2},
		{name: "track change is written", second: playingStatus("C", 12*time.Second, playback.StatePlaying), writes: 2},
		{name: "playing flag change is written", second: playingStatus("B", 12*time.Second, playback.StatePaused), writes: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			saver := &fakeSaver{}
			w := NewWriter(src, saver, "u1", 0)

			src.set(playingStatus("B", 12*time.Second, playback.StatePlaying))
			w.handle(playback.Event{Type: playback.EventPositionChanged})
			src.set(tt.second)
			w.handle(playback.Event{Type: playback.EventPositionChanged})

			assert.Equal(t, tt.writes, saver.snapshotCount())
		})
	}
}

func TestWriter_SnapshotContents(t *testing.T) {
	src := newFakeSource()
	saver := &fakeSaver{}
	w := NewWriter(src, saver, "u1", 0)
	w.now = func() time.Time { return time.UnixMilli(1700000000000) }

	src.set(playingStatus("B", 12300*time.Millisecond, playback.StateBuffering))
	w.handle(playback.Event{Type: playback.EventStateChanged})

	require.Len(t, saver.snapshots, 1)
	got := saver.snapshots[0]
	assert.Equal(t, "B", got.SongID)
	assert.InDelta(t, 12.3, got.Position, 1e-9)
	assert.InDelta(t, 45.0, got.Duration, 1e-9)
	assert.True(t, got.IsPlaying)
	assert.Equal(t, []string{"A", "B", "C"}, got.QueueSongIDs)
	assert.Equal(t, 1, got.CurrentQueueIndex)
	assert.Equal(t, "playlist", got.PlaybackContext)
	assert.Equal(t, int64(1700000000000), got.UpdatedAt)
}

func TestWriter_NoTrackNoWrite(t *testing.T) {
	src := newFakeSource()
	saver := &fakeSaver{}
	w := NewWriter(src, saver, "u1", 0)

	w.handle(playback.Event{Type: playback.EventQueueChanged})
	assert.Equal(t, 0, saver.snapshotCount())

	w.SetUser("")
	src.set(playingStatus("A", 0, playback.StatePaused))
	w.handle(playback.Event{Type: playback.EventTrackChanged})
	assert.Equal(t, 0, saver.snapshotCount())
}

func TestWriter_Volume(t *testing.T) {
	src := newFakeSource()
	saver := &fakeSaver{}
	w := NewWriter(src, saver, "u1", 0)

	s := playingStatus("A", 0, playback.StatePaused)
	s.Volume = 40
	src.set(s)
	w.handle(playback.Event{Type: playback.EventVolumeChanged})
	w.handle(playback.Event{Type: playback.EventVolumeChanged})

	s.Muted = true
	src.set(s)
	w.handle(playback.Event{Type: playback.EventVolumeChanged})

	assert.Equal(t, []snapshot.Volume{{Volume: 40}, {Volume: 40, IsMuted: true}}, saver.volumes)
	assert.Equal(t, 0, saver.snapshotCount(), "volume changes do not write the resume snapshot")
}

func TestWriter_SetUserForgetsLastWrite(t *testing.T) {
	src := newFakeSource()
	saver := &fakeSaver{}
	w := NewWriter(src, saver, "u1", 0)

	src.set(playingStatus("B", 12*time.Second, playback.StatePlaying))
	w.handle(playback.Event{Type: playback.EventPositionChanged})
	w.SetUser("u2")
	w.handle(playback.Event{Type: playback.EventPositionChanged})

	assert.Equal(t, 2, saver.snapshotCount())
}

func TestWriter_Run(t *testing.T) {
	src := newFakeSource()
	saver := &fakeSaver{}
	w := NewWriter(src, saver, "u1", 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	src.set(playingStatus("A", time.Second, playback.StatePlaying))
	src.events <- playback.Event{Type: playback.EventTrackChanged}
	require.Eventually(t, func() bool { return saver.snapshotCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"sub-1"}, src.unsub)
}

func TestWriter_EngineRoundTrip(t *testing.T) {
	e := playback.NewEngine(newSilentOutput(), playback.DefaultConfig())
	prefs := prefstore.NewPreferences(prefstore.NewMemoryStore())
	w := NewWriter(e, prefs, "u1", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	require.Eventually(t, func() bool { return e.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	e.SetQueue(testCatalog().Tracks()[:3], 2, false)
	require.Eventually(t, func() bool {
		_, ok := prefs.LoadSnapshot("u1")
		return ok
	}, time.Second, 5*time.Millisecond)

	snap, _ := prefs.LoadSnapshot("u1")
	assert.Equal(t, "C", snap.SongID)
	assert.Equal(t, 2, snap.CurrentQueueIndex)
	assert.Equal(t, []string{"A", "B", "C"}, snap.QueueSongIDs)

	e.Close()
}
