// Package resume restores the last playback session on startup and keeps it persisted.
package resume

import (
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/app/playback"
	"github.com/osa030/zora/internal/domain/queue"
	"github.com/osa030/zora/internal/domain/snapshot"
	"github.com/osa030/zora/internal/domain/track"
)

// Seeder is the part of the engine the coordinator drives.
type Seeder interface {
	CurrentTrack() (track.Track, bool)
	Restore(req playback.RestoreRequest) error
}

// SnapshotLoader reads persisted resume snapshots.
type SnapshotLoader interface {
	LoadSnapshot(user string) (*snapshot.Resume, bool)
}

// Coordinator seeds the engine from the persisted snapshot once per session.
type Coordinator struct {
	mu       sync.Mutex
	engine   Seeder
	loader   SnapshotLoader
	restored bool
}

// NewCoordinator creates a new coordinator.
func NewCoordinator(engine Seeder, loader SnapshotLoader) *Coordinator {
	return &Coordinator{
		engine: engine,
		loader: loader,
	}
}

// Run restores the snapshot of user against catalog and reports whether the engine was seeded.
// It does nothing until the catalog is loaded, and nothing once a track is loaded
// or a previous run completed.
func (c *Coordinator) Run(user string, catalog *track.Catalog) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.restored || user == "" {
		return false
	}
	if catalog == nil || catalog.Len() == 0 {
		return false
	}
	// Every path below completes the run for this session.
	c.restored = true

	if _, ok := c.engine.CurrentTrack(); ok {
		zlog.Debug().Msg("resume: track already loaded, skipping")
		return false
	}

	snap, ok := c.loader.LoadSnapshot(user)
	if !ok {
		zlog.Debug().Msgf("resume: no snapshot for %s", user)
		return false
	}

	req, ok := buildRequest(snap, catalog)
	if !ok {
		zlog.Info().Msgf("resume: snapshot for %s references no known tracks", user)
		return false
	}

	if err := c.engine.Restore(req); err != nil {
		zlog.Warn().Err(err).Msg("resume: failed to seed engine")
		return false
	}
	return true
}

// Reset re-arms the coordinator, e.g. after logout.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restored = false
}

// Restored reports whether the coordinator has run this session.
func (c *Coordinator) Restored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restored
}

// buildRequest resolves the snapshot against the loaded catalog.
func buildRequest(snap *snapshot.Resume, catalog *track.Catalog) (playback.RestoreRequest, bool) {
	tracks := catalog.Resolve(snap.QueueSongIDs)
	index := 0
	if len(tracks) > 0 {
		index = min(max(snap.CurrentQueueIndex, 0), len(tracks)-1)
	} else if t, ok := catalog.Lookup(snap.SongID); ok {
		tracks = []track.Track{t}
	} else {
		return playback.RestoreRequest{}, false
	}

	stored := snap.DurationDuration()
	active := &tracks[index]
	if stored > 0 && !active.HasDuration() {
		active.Duration = stored
	}

	limit := stored
	if limit <= 0 {
		limit = active.Duration
	}
	pos := max(snap.PositionDuration(), 0)
	if limit > 0 {
		pos = min(pos, limit)
	}

	return playback.RestoreRequest{
		Tracks:      tracks,
		Index:       index,
		Context:     queue.ParseContext(snap.PlaybackContext),
		Position:    pos,
		WantPlaying: snap.IsPlaying,
	}, true
}
