package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/osa030/zora/internal/domain/track"
)

const unknownArtist = "Unknown"

// flexibleID accepts both numeric and string identifiers.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexibleID(n.String())
	return nil
}

// songResponse is a song as served by the backend.
type songResponse struct {
	ID       flexibleID `json:"id"`
	Title    string     `json:"title"`
	Duration *float64   `json:"duration"`
	Artista  *struct {
		ID             flexibleID `json:"id"`
		NombreCompleto string     `json:"nombre_completo"`
		Email          string     `json:"email"`
	} `json:"artista"`
	Album *struct {
		ID       flexibleID `json:"id"`
		Title    *string    `json:"title"`
		CoverURL string     `json:"cover_url"`
	} `json:"album"`
	CoverURL   string `json:"cover_url"`
	AudioURL   string `json:"audio_url"`
	PlayCount  int    `json:"play_count"`
	IsFavorite bool   `json:"is_favorite"`
}

// toTrack maps a backend song to a track.
func (s songResponse) toTrack() track.Track {
	t := track.Track{
		ID:          string(s.ID),
		Title:       s.Title,
		ArtistName:  unknownArtist,
		CoverURL:    s.CoverURL,
		PlayableURL: s.AudioURL,
		PlayCount:   s.PlayCount,
		IsFavorite:  s.IsFavorite,
	}
	if s.Duration != nil && *s.Duration > 0 {
		t.Duration = time.Duration(*s.Duration * float64(time.Second))
	}
	if s.Artista != nil {
		switch {
		case s.Artista.NombreCompleto != "":
			t.ArtistName = s.Artista.NombreCompleto
		case s.Artista.Email != "":
			t.ArtistName = s.Artista.Email
		}
	}
	if s.Album != nil {
		if s.Album.Title != nil {
			title := *s.Album.Title
			t.AlbumName = &title
		}
		if t.CoverURL == "" {
			t.CoverURL = s.Album.CoverURL
		}
	}
	return t
}

func toTracks(songs []songResponse) []track.Track {
	tracks := make([]track.Track, 0, len(songs))
	for _, s := range songs {
		tracks = append(tracks, s.toTrack())
	}
	return tracks
}

// Playlist is a user playlist with its tracks.
type Playlist struct {
	ID       string
	Name     string
	IsPublic bool
	Tracks   []track.Track
}

type playlistResponse struct {
	ID       flexibleID     `json:"id"`
	Name     string         `json:"name"`
	IsPublic bool           `json:"is_public"`
	Songs    []songResponse `json:"songs"`
}

// errorResponse is the backend error body.
type errorResponse struct {
	Code   string          `json:"code"`
	Detail json.RawMessage `json:"detail"`
}

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return "catalog API error " + strconv.Itoa(e.StatusCode)
	}
	return "catalog API error " + strconv.Itoa(e.StatusCode) + ": " + e.Detail
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return apiErr
	}
	apiErr.Code = resp.Code
	var detail string
	if err := json.Unmarshal(resp.Detail, &detail); err == nil {
		apiErr.Detail = detail
	} else if len(resp.Detail) > 0 {
		apiErr.Detail = string(resp.Detail)
	}
	return apiErr
}
