// Package track provides the Track domain entity.
package track

import "time"

// Track represents a playable catalog entry.
// Values are immutable once handed to the player; the queue keeps copies.
type Track struct {
	ID          string        // Catalog track ID
	Title       string        // Track title
	ArtistName  string        // Display name of the artist
	AlbumName   *string       // Album title (nil for singles)
	Duration    time.Duration // Track duration (0 if unknown)
	CoverURL    string        // Cover art URL
	PlayableURL string        // Audio resource URL
	PlayCount   int           // Server-side play counter
	IsFavorite  bool          // Favorite flag for the current user
}

// HasDuration reports whether the catalog knows the track length.
func (t *Track) HasDuration() bool {
	return t.Duration > 0
}

// IDs returns the IDs of the given tracks in order.
func IDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the sum of all known track durations.
func TotalDuration(tracks []Track) time.Duration {
	var total time.Duration
	for _, t := range tracks {
		total += t.Duration
	}
	return total
}

// Catalog is an ID-indexed view over the loaded track list.
type Catalog struct {
	tracks []Track
	byID   map[string]int
}

// NewCatalog indexes the given tracks. Later duplicates of an ID are ignored.
func NewCatalog(tracks []Track) *Catalog {
	c := &Catalog{
		tracks: make([]Track, len(tracks)),
		byID:   make(map[string]int, len(tracks)),
	}
	copy(c.tracks, tracks)
	for i, t := range c.tracks {
		if _, ok := c.byID[t.ID]; !ok {
			c.byID[t.ID] = i
		}
	}
	return c
}

// Len returns the number of tracks in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tracks)
}

// Tracks returns a copy of all tracks in catalog order.
func (c *Catalog) Tracks() []Track {
	if c == nil {
		return nil
	}
	result := make([]Track, len(c.tracks))
	copy(result, c.tracks)
	return result
}

// Lookup returns the track with the given ID.
func (c *Catalog) Lookup(id string) (Track, bool) {
	if c == nil {
		return Track{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Track{}, false
	}
	return c.tracks[i], true
}

// Resolve maps IDs to tracks, silently skipping IDs that are not in the catalog.
func (c *Catalog) Resolve(ids []string) []Track {
	result := make([]Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := c.Lookup(id); ok {
			result = append(result, t)
		}
	}
	return result
}
