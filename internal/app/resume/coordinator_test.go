package resume

import (
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

type fakeSeeder struct {
	current  *track.Track
	requests []playback.RestoreRequest
	err      error
}

func (f *fakeSeeder) CurrentTrack() (track.Track, bool) {
	if f.current == nil {
		return track.Track{}, false
	}
	return *f.current, true
}

func (f *fakeSeeder) Restore(req playback.RestoreRequest) error {
	f.requests = append(f.requests, req)
	return f.err
}

func testCatalog() *track.Catalog {
	return track.NewCatalog([]track.Track{
		{ID: "A", Title: "Alpha", Duration: 30 * time.Second},
		{ID: "B", Title: "Bravo", Duration: 45 * time.Second},
		{ID: "C", Title: "Charlie", Duration: 20 * time.Second},
		{ID: "D", Title: "Delta"},
	})
}

func newPrefs(t *testing.T, user string, snap *snapshot.Resume) *prefstore.Preferences {
	t.Helper()
	prefs := prefstore.NewPreferences(prefstore.NewMemoryStore())
	if snap != nil {
		prefs.SaveSnapshot(user, *snap)
	}
	return prefs
}

func TestCoordinator_Run(t *testing.T) {
	tests := []struct {
		name       string
		snap       *snapshot.Resume
		wantSeeded bool
		wantIDs    []string
		wantIndex  int
		wantPos    time.Duration
		wantCtx    queue.Context
		wantPlay   bool
	}{
		{
			name: "full queue",
			snap: &snapshot.Resume{
				SongID: "B", Position: 12.3, Duration: 45, IsPlaying: true,
				QueueSongIDs: []string{"A", "B", "C"}, CurrentQueueIndex: 1, PlaybackContext: "playlist",
			},
			wantSeeded: true,
			wantIDs:    []string{"A", "B", "C"},
			wantIndex:  1,
			wantPos:    12300 * time.Millisecond,
			wantCtx:    queue.ContextPlaylist,
			wantPlay:   true,
		},
		{
			name: "deleted tracks are dropped and index clamped",
			snap: &snapshot.Resume{
				SongID: "C", Position: 5, QueueSongIDs: []string{"A", "gone", "C"}, CurrentQueueIndex: 7,
				PlaybackContext: "playlist",
			},
			wantSeeded: true,
			wantIDs:    []string{"A", "C"},
			wantIndex:  1,
			wantPos:    5 * time.Second,
			wantCtx:    queue.ContextPlaylist,
		},
		{
			name: "falls back to the song id",
			snap: &snapshot.Resume{
				SongID: "B", Position: 3, QueueSongIDs: []string{"x", "y"}, CurrentQueueIndex: 1,
				PlaybackContext: "single",
			},
			wantSeeded: true,
			wantIDs:    []string{"B"},
			wantIndex:  0,
			wantPos:    3 * time.Second,
			wantCtx:    queue.ContextSingle,
		},
		{
			name:       "unresolvable",
			snap:       &snapshot.Resume{SongID: "x", QueueSongIDs: []string{"y"}},
			wantSeeded: false,
		},
		{
			name:       "absent",
			snap:       nil,
			wantSeeded: false,
		},
		{
			name: "position clamped to stored duration",
			snap: &snapshot.Resume{
				SongID: "A", Position: 100, Duration: 28, QueueSongIDs: []string{"A"},
			},
			wantSeeded: true,
			wantIDs:    []string{"A"},
			wantPos:    28 * time.Second,
			wantCtx:    queue.ContextSingle,
		},
		{
			name: "position clamped to track duration",
			snap: &snapshot.Resume{
				SongID: "C", Position: 100, QueueSongIDs: []string{"C"},
			},
			wantSeeded: true,
			wantIDs:    []string{"C"},
			wantPos:    20 * time.Second,
			wantCtx:    queue.ContextSingle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seeder := &fakeSeeder{}
			c := NewCoordinator(seeder, newPrefs(t, "u1", tt.snap))

			seeded := c.Run("u1", testCatalog())
			assert.Equal(t, tt.wantSeeded, seeded)
			assert.True(t, c.Restored())
			if !tt.wantSeeded {
				assert.Empty(t, seeder.requests)
				return
			}

			require.Len(t, seeder.requests, 1)
			req := seeder.requests[0]
			assert.Equal(t, tt.wantIDs, track.IDs(req.Tracks))
			assert.Equal(t, tt.wantIndex, req.Index)
			assert.InDelta(t, float64(tt.wantPos), float64(req.Position), float64(time.Millisecond))
			assert.Equal(t, tt.wantCtx, req.Context)
			assert.Equal(t, tt.wantPlay, req.WantPlaying)
		})
	}
}

func TestCoordinator_AdoptsStoredDuration(t *testing.T) {
	seeder := &fakeSeeder{}
	snap := &snapshot.Resume{SongID: "D", Position: 61, Duration: 180, QueueSongIDs: []string{"A", "D"}, CurrentQueueIndex: 1}
	c := NewCoordinator(seeder, newPrefs(t, "u1", snap))

	require.True(t, c.Run("u1", testCatalog()))
	req := seeder.requests[0]
	assert.Equal(t, 180*time.Second, req.Tracks[1].Duration)
	assert.Equal(t, 30*time.Second, req.Tracks[0].Duration, "only the active track adopts the stored duration")
	assert.Equal(t, 61*time.Second, req.Position)
}

func TestCoordinator_Gates(t *testing.T) {
	snap := &snapshot.Resume{SongID: "A", QueueSongIDs: []string{"A"}}

	t.Run("catalog not loaded", func(t *testing.T) {
		seeder := &fakeSeeder{}
		c := NewCoordinator(seeder, newPrefs(t, "u1", snap))

		assert.False(t, c.Run("u1", nil))
		assert.False(t, c.Run("u1", track.NewCatalog(nil)))
		assert.False(t, c.Restored())

		assert.True(t, c.Run("u1", testCatalog()))
	})

	t.Run("track already loaded", func(t *testing.T) {
		seeder := &fakeSeeder{current: &track.Track{ID: "B"}}
		c := NewCoordinator(seeder, newPrefs(t, "u1", snap))

		assert.False(t, c.Run("u1", testCatalog()))
		assert.Empty(t, seeder.requests)
	})

	t.Run("runs once until reset", func(t *testing.T) {
		seeder := &fakeSeeder{}
		c := NewCoordinator(seeder, newPrefs(t, "u1", snap))

		assert.True(t, c.Run("u1", testCatalog()))
		assert.False(t, c.Run("u1", testCatalog()))
		assert.Len(t, seeder.requests, 1)

		c.Reset()
		assert.True(t, c.Run("u1", testCatalog()))
		assert.Len(t, seeder.requests, 2)
	})

	t.Run("other user", func(t *testing.T) {
		seeder := &fakeSeeder{}
		c := NewCoordinator(seeder, newPrefs(t, "u1", snap))

		assert.False(t, c.Run("u2", testCatalog()))
	})
}

func TestCoordinator_SeedsRealEngine(t *testing.T) {
	e := playback.NewEngine(newSilentOutput(), playback.DefaultConfig())
	defer e.Close()

	snap := &snapshot.Resume{
		SongID: "B", Position: 12.3, IsPlaying: false,
		QueueSongIDs: []string{"A", "B", "C"}, CurrentQueueIndex: 1, PlaybackContext: "playlist",
	}
	c := NewCoordinator(e, newPrefs(t, "u1", snap))
	require.True(t, c.Run("u1", testCatalog()))

	s := e.Status()
	require.NotNil(t, s.Track)
	assert.Equal(t, "B", s.Track.ID)
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, queue.ContextPlaylist, s.Context)
	require.NotNil(t, s.PendingResume)
	assert.InDelta(t, 12.3, s.PendingResume.Seconds(), 1e-6)
}

func TestCoordinator_UnresolvableLeavesEngineIdle(t *testing.T) {
	e := playback.NewEngine(newSilentOutput(), playback.DefaultConfig())
	defer e.Close()

	snap := &snapshot.Resume{SongID: "zz", QueueSongIDs: []string{"yy"}}
	c := NewCoordinator(e, newPrefs(t, "u1", snap))

	assert.False(t, c.Run("u1", testCatalog()))
	assert.Equal(t, playback.StateIdle, e.State())
	_, ok := e.CurrentTrack()
	assert.False(t, ok)
}

// silentOutput accepts every call and never reports events.
type silentOutput struct{}

func newSilentOutput() *silentOutput { return &silentOutput{} }

func (*silentOutput) Load(string) (uint64, error) { return 1, nil }
func (*silentOutput) Play() <-chan error {
	ch := make(chan error, 1)
	ch <- nil
	return ch
}
func (*silentOutput) Pause()                              {}
func (*silentOutput) Seek(time.Duration)                  {}
func (*silentOutput) SetGain(float64)                     {}
func (*silentOutput) Unload()                             {}
func (*silentOutput) Subscribe(func(playback.MediaEvent)) {}
