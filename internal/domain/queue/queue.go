// Package queue provides the ordered play queue with shuffle support.
package queue

import (
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/zora/internal/domain/track"
)

// ErrIndexOutOfRange is returned for positions outside [0, Len()).
var ErrIndexOutOfRange = errors.New("queue index out of range")

// Context describes how the queue was seeded.
type Context int

const (
	ContextSingle   Context = iota // One track played in isolation
	ContextPlaylist                // Contiguous session from a playlist, album or search result
)

// String returns the wire name of the context.
func (c Context) String() string {
	switch c {
	case ContextSingle:
		return "single"
	case ContextPlaylist:
		return "playlist"
	default:
		return "unknown"
	}
}

// ParseContext parses a wire name. Unknown names map to ContextSingle.
func ParseContext(s string) Context {
	if s == "playlist" {
		return ContextPlaylist
	}
	return ContextSingle
}

// Shuffler permutes a slice in place.
type Shuffler func(n int, swap func(i, j int))

// Queue is the ordered list of tracks the player walks through.
// When not shuffled, tracks and original hold the same order.
// When shuffled, original is a permutation of tracks.
type Queue struct {
	tracks   []track.Track
	original []track.Track
	index    int
	shuffled bool
	context  Context
	shuffle  Shuffler
}

// New creates an empty queue using math/rand for shuffling.
func New() *Queue {
	return &Queue{shuffle: rand.Shuffle}
}

// NewWithShuffler creates an empty queue with a custom permutation source.
func NewWithShuffler(s Shuffler) *Queue {
	if s == nil {
		s = rand.Shuffle
	}
	return &Queue{shuffle: s}
}

// Set replaces the queue contents and turns shuffle off.
// start is clamped into range. Returns false when tracks is empty, in which case the queue is cleared.
func (q *Queue) Set(tracks []track.Track, start int, ctx Context) bool {
	if len(tracks) == 0 {
		q.Clear()
		return false
	}
	q.tracks = clone(tracks)
	q.original = clone(tracks)
	q.shuffled = false
	q.context = ctx
	q.index = clamp(start, 0, len(tracks)-1)
	return true
}

// Clear empties the queue, resets the index to 0 and turns shuffle off.
func (q *Queue) Clear() {
	q.tracks = nil
	q.original = nil
	q.index = 0
	q.shuffled = false
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int { return len(q.tracks) }

// IsEmpty reports whether the queue holds no tracks.
func (q *Queue) IsEmpty() bool { return len(q.tracks) == 0 }

// Index returns the current index. Meaningless when the queue is empty.
func (q *Queue) Index() int { return q.index }

// Context returns the seeding context.
func (q *Queue) Context() Context { return q.context }

// SetContext overrides the seeding context.
func (q *Queue) SetContext(ctx Context) { q.context = ctx }

// Shuffled reports whether shuffle is active.
func (q *Queue) Shuffled() bool { return q.shuffled }

// IsLast reports whether the current index is the last slot.
func (q *Queue) IsLast() bool { return q.index == len(q.tracks)-1 }

// Current returns the track at the current index.
func (q *Queue) Current() (track.Track, bool) {
	if q.IsEmpty() {
		return track.Track{}, false
	}
	return q.tracks[q.index], true
}

// At returns the track at position i.
func (q *Queue) At(i int) (track.Track, error) {
	if i < 0 || i >= len(q.tracks) {
		return track.Track{}, ErrIndexOutOfRange
	}
	return q.tracks[i], nil
}

// Tracks returns a copy of the queue in play order.
func (q *Queue) Tracks() []track.Track { return clone(q.tracks) }

// Original returns a copy of the pre-shuffle order.
func (q *Queue) Original() []track.Track { return clone(q.original) }

// SetIndex moves the cursor without touching the order.
func (q *Queue) SetIndex(i int) error {
	if i < 0 || i >= len(q.tracks) {
		return ErrIndexOutOfRange
	}
	q.index = i
	return nil
}

// SetCurrentDuration sets the duration of the current entry when it is unknown.
func (q *Queue) SetCurrentDuration(d time.Duration) {
	if q.IsEmpty() || d <= 0 || q.tracks[q.index].Duration > 0 {
		return
	}
	q.tracks[q.index].Duration = d

	id := q.tracks[q.index].ID
	for i := range q.original {
		if q.original[i].ID == id && q.original[i].Duration <= 0 {
			q.original[i].Duration = d
			break
		}
	}
}

// Append adds tracks at the end. While shuffled they are appended to the
// original order too, so un-shuffling keeps them in arrival order.
func (q *Queue) Append(tracks ...track.Track) {
	q.tracks = append(q.tracks, tracks...)
	if q.shuffled {
		q.original = append(q.original, tracks...)
	} else {
		q.original = clone(q.tracks)
	}
}

// Remove deletes the track at position i and adjusts the current index.
// It reports whether the removed track was the current one.
func (q *Queue) Remove(i int) (bool, error) {
	if i < 0 || i >= len(q.tracks) {
		return false, ErrIndexOutOfRange
	}
	removed := q.tracks[i]
	wasCurrent := i == q.index

	q.tracks = append(q.tracks[:i:i], q.tracks[i+1:]...)
	if q.shuffled {
		q.original = removeFirst(q.original, removed.ID)
	} else {
		q.original = clone(q.tracks)
	}

	if len(q.tracks) == 0 {
		q.Clear()
		return wasCurrent, nil
	}

	switch {
	case i < q.index:
		q.index--
	case wasCurrent && q.index >= len(q.tracks):
		q.index = len(q.tracks) - 1
	}
	return wasCurrent, nil
}

// Move relocates the track at from to position to, keeping the cursor on the same track.
func (q *Queue) Move(from, to int) error {
	n := len(q.tracks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrIndexOutOfRange
	}
	if from == to {
		return nil
	}

	moved := q.tracks[from]
	rest := append(q.tracks[:from:from], q.tracks[from+1:]...)
	q.tracks = append(rest[:to:to], append([]track.Track{moved}, rest[to:]...)...)

	switch {
	case from == q.index:
		q.index = to
	case from < q.index && to >= q.index:
		q.index--
	case from > q.index && to <= q.index:
		q.index++
	}

	if !q.shuffled {
		q.original = clone(q.tracks)
	}
	return nil
}

// ToggleShuffle flips shuffle.
// On: the current track moves to index 0 and the rest are permuted (Fisher-Yates).
// Off: the original order comes back with the cursor on the current track's ID,
// or 0 when it is no longer present.
func (q *Queue) ToggleShuffle() bool {
	if q.shuffled {
		cur, ok := q.Current()
		q.tracks = clone(q.original)
		q.shuffled = false
		q.index = 0
		if ok {
			for i, t := range q.tracks {
				if t.ID == cur.ID {
					q.index = i
					break
				}
			}
		}
		return false
	}

	q.original = clone(q.tracks)
	q.shuffled = true
	if q.IsEmpty() {
		return true
	}

	current := q.tracks[q.index]
	others := make([]track.Track, 0, len(q.tracks)-1)
	others = append(others, q.tracks[:q.index]...)
	others = append(others, q.tracks[q.index+1:]...)
	q.shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })

	q.tracks = append([]track.Track{current}, others...)
	q.index = 0
	return true
}

func removeFirst(tracks []track.Track, id string) []track.Track {
	for i, t := range tracks {
		if t.ID == id {
			return append(tracks[:i:i], tracks[i+1:]...)
		}
	}
	return tracks
}

func clone(tracks []track.Track) []track.Track {
	if tracks == nil {
		return nil
	}
	result := make([]track.Track, len(tracks))
	copy(result, tracks)
	return result
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
