package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/zora/internal/app/playback"
	"github.com/osa030/zora/internal/domain/queue"
	"github.com/osa030/zora/internal/domain/track"
)

type fakeSource struct {
	mu     sync.Mutex
	status playback.Status
	events chan playback.Event
}

func (f *fakeSource) Subscribe() (string, <-chan playback.Event) { return "sub", f.events }
func (f *fakeSource) Unsubscribe(string)                         {}
func (f *fakeSource) Status() playback.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func sampleStatus() playback.Status {
	album := "Debut"
	cur := track.Track{ID: "7", Title: "Song", ArtistName: "Band", AlbumName: &album, Duration: 200 * time.Second}
	return playback.Status{
		Track:    &cur,
		State:    playback.StatePlaying,
		Position: 12500 * time.Millisecond,
		Duration: 200 * time.Second,
		Volume:   60,
		Repeat:   playback.RepeatAll,
		Index:    1,
		Queue:    []track.Track{{ID: "6"}, cur},
		Context:  queue.ContextPlaylist,
	}
}

func TestNewPayload(t *testing.T) {
	p := NewPayload("trackchanged", sampleStatus())

	assert.Equal(t, "trackchanged", p.Type)
	assert.Equal(t, playback.StatePlaying.String(), p.State)
	require.NotNil(t, p.Track)
	assert.Equal(t, "7", p.Track.ID)
	assert.Equal(t, "Debut", *p.Track.AlbumName)
	assert.InDelta(t, 12.5, p.Position, 1e-9)
	assert.Equal(t, 2, p.Length)
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, "playlist", p.Context)

	empty := NewPayload("queuechanged", playback.Status{})
	assert.Nil(t, empty.Track)
	assert.Equal(t, 0, empty.Length)
}

func TestPublisher_Status(t *testing.T) {
	src := &fakeSource{status: sampleStatus(), events: make(chan playback.Event)}
	p := NewPublisher(src, []string{"*"})
	defer p.Close()

	ts := httptest.NewServer(p.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got Payload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "status", got.Type)
	assert.Equal(t, 60, got.Volume)
	assert.Equal(t, "Song", got.Track.Title)

	post, err := http.Post(ts.URL+"/status", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestPublisher_CORS(t *testing.T) {
	src := &fakeSource{events: make(chan playback.Event)}
	p := NewPublisher(src, []string{"http://localhost:5173"})
	defer p.Close()

	ts := httptest.NewServer(p.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/status", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPublisher_Stream(t *testing.T) {
	src := &fakeSource{status: sampleStatus(), events: make(chan playback.Event, 64)}
	p := NewPublisher(src, nil)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	ts := httptest.NewServer(p.Handler())
	defer ts.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?stream="+Stream, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				lines <- data
			}
		}
	}()

	// The subscriber registers asynchronously, so keep publishing until one arrives.
	var data string
	require.Eventually(t, func() bool {
		src.events <- playback.Event{Type: playback.EventStateChanged}
		select {
		case data = <-lines:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	var got Payload
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, playback.EventStateChanged.String(), got.Type)
	assert.Equal(t, "7", got.Track.ID)
}

func TestPublisher_ListenAndServeStops(t *testing.T) {
	src := &fakeSource{events: make(chan playback.Event)}
	p := NewPublisher(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
