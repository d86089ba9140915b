package playback

import (
	"context"
	"sync"
	"time"

	"github.com/osa030/zora/internal/domain/track"
)

// fakeOutput records engine calls and lets tests emit media events.
type fakeOutput struct {
	mu      sync.Mutex
	handler func(MediaEvent)
	loads   []string
	plays   []chan error
	pauses  int
	seeks   []time.Duration
	gain    float64
	unloads int
	loadErr error
	gen     uint64
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{}
}

func (f *fakeOutput) Load(src string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.loads = append(f.loads, src)
	return f.gen, f.loadErr
}

func (f *fakeOutput) Play() <-chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan error, 1)
	f.plays = append(f.plays, ch)
	return ch
}

func (f *fakeOutput) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeOutput) Seek(pos time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, pos)
}

func (f *fakeOutput) SetGain(gain float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gain = gain
}

func (f *fakeOutput) Unload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloads++
}

func (f *fakeOutput) Subscribe(handler func(MediaEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

// emit delivers an event of the current load the way a real output would,
// outside any engine call.
func (f *fakeOutput) emit(ev MediaEvent) {
	f.mu.Lock()
	ev.Gen = f.gen
	h := f.handler
	f.mu.Unlock()
	h(ev)
}

// emitLate delivers an event that an earlier load queued before being replaced.
func (f *fakeOutput) emitLate(gen uint64, ev MediaEvent) {
	f.mu.Lock()
	ev.Gen = gen
	h := f.handler
	f.mu.Unlock()
	h(ev)
}

func (f *fakeOutput) currentGen() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

func (f *fakeOutput) emitType(t MediaEventType) {
	f.emit(MediaEvent{Type: t})
}

// ready reports metadata followed by can-play.
func (f *fakeOutput) ready(d time.Duration) {
	f.emit(MediaEvent{Type: MediaLoadedMetadata, Duration: d})
	f.emitType(MediaCanPlay)
}

// resolve completes the i-th play request.
func (f *fakeOutput) resolve(i int, err error) {
	f.mu.Lock()
	ch := f.plays[i]
	f.mu.Unlock()
	ch <- err
}

func (f *fakeOutput) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plays)
}

func (f *fakeOutput) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func (f *fakeOutput) lastLoad() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) == 0 {
		return ""
	}
	return f.loads[len(f.loads)-1]
}

func (f *fakeOutput) lastSeek() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seeks) == 0 {
		return 0, false
	}
	return f.seeks[len(f.seeks)-1], true
}

func (f *fakeOutput) currentGain() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gain
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeReporter counts play registrations.
type fakeReporter struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *fakeReporter) RegisterPlayback(_ context.Context, trackID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, trackID)
	return r.err
}

func (r *fakeReporter) registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func newTrack(id string, d time.Duration) track.Track {
	return track.Track{
		ID:          id,
		Title:       "Track " + id,
		ArtistName:  "Artist",
		Duration:    d,
		PlayableURL: "https://cdn.example.com/" + id + ".mp3",
	}
}

// abc is the A(30s) B(45s) C(20s) queue.
func abc() []track.Track {
	return []track.Track{
		newTrack("A", 30*time.Second),
		newTrack("B", 45*time.Second),
		newTrack("C", 20*time.Second),
	}
}
