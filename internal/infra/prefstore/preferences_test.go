package prefstore

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/zora/internal/domain/snapshot"
)

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(string) ([]byte, error) { return nil, errors.New("storage disabled") }
func (failingStore) Set(string, []byte) error   { return errors.New("quota exceeded") }
func (failingStore) Close() error               { return nil }

func TestPreferences_SnapshotRoundTrip(t *testing.T) {
	p := NewPreferences(NewMemoryStore())

	_, ok := p.LoadSnapshot("42")
	assert.False(t, ok)

	want := snapshot.Resume{
		SongID:            "B",
		Position:          12.3,
		Duration:          45,
		IsPlaying:         true,
		QueueSongIDs:      []string{"A", "B", "C"},
		CurrentQueueIndex: 1,
		PlaybackContext:   "playlist",
		UpdatedAt:         1700000000000,
	}
	p.SaveSnapshot("42", want)

	got, ok := p.LoadSnapshot("42")
	require.True(t, ok)
	assert.Equal(t, want, *got)

	_, ok = p.LoadSnapshot("someone-else")
	assert.False(t, ok, "snapshots are namespaced per user")
}

func TestPreferences_MalformedSnapshotIsAbsent(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(snapshot.ResumeKey("42"), []byte(`{"position":"oops"`)))

	p := NewPreferences(store)
	_, ok := p.LoadSnapshot("42")
	assert.False(t, ok)
}

func TestPreferences_Volume(t *testing.T) {
	p := NewPreferences(NewMemoryStore())

	_, ok := p.LoadVolume()
	assert.False(t, ok)

	p.SaveVolume(snapshot.Volume{Volume: 40, IsMuted: true})
	got, ok := p.LoadVolume()
	require.True(t, ok)
	assert.Equal(t, 40, got.Volume)
	assert.True(t, got.IsMuted)
}

func TestPreferences_FailuresAreSwallowed(t *testing.T) {
	p := NewPreferences(failingStore{})

	assert.NotPanics(t, func() {
		p.SaveSnapshot("42", snapshot.Resume{SongID: "A"})
		p.SaveVolume(snapshot.Volume{Volume: 10})
		p.Save("unencodable", func() {})
	})

	_, ok := p.LoadSnapshot("42")
	assert.False(t, ok)
	_, ok = p.LoadVolume()
	assert.False(t, ok)
}
