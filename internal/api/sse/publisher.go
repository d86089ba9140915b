// Package sse publishes the now-playing session as server-sent events.
package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/app/playback"
)

// Stream is the name of the event stream clients subscribe to.
const Stream = "player"

// Source is the read-only view of the engine the publisher consumes.
type Source interface {
	Subscribe() (string, <-chan playback.Event)
	Unsubscribe(id string)
	Status() playback.Status
}

// TrackPayload is the published form of a track.
type TrackPayload struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	ArtistName string  `json:"artistName"`
	AlbumName  *string `json:"albumName"`
	Duration   float64 `json:"durationSeconds"`
	CoverURL   string  `json:"coverUrl,omitempty"`
}

// Payload is one published event.
type Payload struct {
	Type     string        `json:"type"`
	State    string        `json:"state"`
	Track    *TrackPayload `json:"track"`
	Position float64       `json:"position"`
	Duration float64       `json:"duration"`
	Volume   int           `json:"volume"`
	Muted    bool          `json:"isMuted"`
	Repeat   string        `json:"repeat"`
	Shuffled bool          `json:"shuffled"`
	Index    int           `json:"currentQueueIndex"`
	Length   int           `json:"queueLength"`
	Context  string        `json:"playbackContext"`
}

// NewPayload builds the payload of an event from the engine status.
func NewPayload(eventType string, s playback.Status) Payload {
	p := Payload{
		Type:     eventType,
		State:    s.State.String(),
		Position: s.Position.Seconds(),
		Duration: s.Duration.Seconds(),
		Volume:   s.Volume,
		Muted:    s.Muted,
		Repeat:   s.Repeat.String(),
		Shuffled: s.Shuffled,
		Index:    s.Index,
		Length:   len(s.Queue),
		Context:  s.Context.String(),
	}
	if s.Track != nil {
		p.Track = &TrackPayload{
			ID:         s.Track.ID,
			Title:      s.Track.Title,
			ArtistName: s.Track.ArtistName,
			AlbumName:  s.Track.AlbumName,
			Duration:   s.Track.Duration.Seconds(),
			CoverURL:   s.Track.CoverURL,
		}
	}
	return p
}

// Publisher fans engine events out to SSE clients.
type Publisher struct {
	source  Source
	server  *sse.Server
	origins []string
}

// NewPublisher creates a publisher with its event stream.
func NewPublisher(source Source, origins []string) *Publisher {
	server := sse.New()
	server.AutoReplay = false
	server.CreateStream(Stream)

	return &Publisher{
		source:  source,
		server:  server,
		origins: origins,
	}
}

// Handler returns the HTTP routes: /events for the stream and /status for a snapshot.
func (p *Publisher) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", p.server.ServeHTTP)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(NewPayload("status", p.source.Status())); err != nil {
			zlog.Warn().Err(err).Msg("sse: failed to encode status")
		}
	})

	c := cors.New(cors.Options{
		AllowedOrigins: p.origins,
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
	})
	return c.Handler(mux)
}

// Run publishes engine events until ctx is done or the engine closes.
func (p *Publisher) Run(ctx context.Context) {
	id, events := p.source.Subscribe()
	defer p.source.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.publish(ev.Type.String())
		}
	}
}

func (p *Publisher) publish(eventType string) {
	data, err := json.Marshal(NewPayload(eventType, p.source.Status()))
	if err != nil {
		zlog.Warn().Err(err).Msg("sse: failed to encode event")
		return
	}
	p.server.Publish(Stream, &sse.Event{Data: data})
}

// Close disconnects all clients.
func (p *Publisher) Close() {
	p.server.Close()
}

// ListenAndServe serves the publisher on addr until ctx is done.
func (p *Publisher) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("sse: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "failed to serve events on %s", addr)
	case <-ctx.Done():
	}

	p.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down event server")
	}
	return nil
}
