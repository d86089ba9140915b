// Package catalog provides a client for the music backend.
package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/zora/internal/domain/track"
)

// ErrNotFound is returned when the backend has no such resource.
var ErrNotFound = errors.New("not found")

const codeTokenNotValid = "token_not_valid"

// Config represents catalog client configuration.
type Config struct {
	BaseURL      string
	AccessToken  string
	RefreshToken string
	Timeout      time.Duration
}

// Client is a backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *tokenSource
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrapf(err, "invalid catalog base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     newTokenSource(baseURL, cfg.AccessToken, cfg.RefreshToken, httpClient),
	}, nil
}

// GetAllTracks retrieves the full catalog.
func (c *Client) GetAllTracks(ctx context.Context) ([]track.Track, error) {
	var songs []songResponse
	if err := c.getJSON(ctx, "/musica/", &songs); err != nil {
		return nil, errors.Wrap(err, "failed to get tracks")
	}
	return toTracks(songs), nil
}

// GetTrack retrieves one track.
func (c *Client) GetTrack(ctx context.Context, id string) (track.Track, error) {
	var song songResponse
	if err := c.getJSON(ctx, "/musica/"+url.PathEscape(id)+"/", &song); err != nil {
		return track.Track{}, errors.Wrapf(err, "failed to get track %s", id)
	}
	return song.toTrack(), nil
}

// Search retrieves tracks matching query.
func (c *Client) Search(ctx context.Context, query string) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}

	params := url.Values{}
	params.Set("q", query)

	var songs []songResponse
	if err := c.getJSON(ctx, "/musica/buscar/?"+params.Encode(), &songs); err != nil {
		return nil, errors.Wrapf(err, "failed to search %q", query)
	}
	return toTracks(songs), nil
}

// GetPlaylists retrieves the playlists visible to the user.
func (c *Client) GetPlaylists(ctx context.Context) ([]Playlist, error) {
	var resp []playlistResponse
	if err := c.getJSON(ctx, "/listas/", &resp); err != nil {
		return nil, errors.Wrap(err, "failed to get playlists")
	}

	playlists := make([]Playlist, 0, len(resp))
	for _, p := range resp {
		playlists = append(playlists, Playlist{
			ID:       string(p.ID),
			Name:     p.Name,
			IsPublic: p.IsPublic,
			Tracks:   toTracks(p.Songs),
		})
	}
	return playlists, nil
}

// RegisterPlayback records a play of the track in the user's history.
func (c *Client) RegisterPlayback(ctx context.Context, trackID string) error {
	_, err := c.do(ctx, http.MethodPost, "/musica/historial/"+url.PathEscape(trackID)+"/registrar/")
	if err != nil {
		return errors.Wrapf(err, "failed to register playback of %s", trackID)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// do sends a request, refreshing the token and retrying once when it was rejected.
func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	status, body, err := c.send(ctx, method, path)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && c.tokens.canRefresh() {
		apiErr := parseAPIError(status, body)
		if apiErr.Code == codeTokenNotValid {
			zlog.Debug().Msgf("catalog: token rejected on %s %s, refreshing", method, path)
			if err := c.tokens.Refresh(ctx); err != nil {
				return nil, errors.Wrap(err, "failed to refresh token")
			}
			status, body, err = c.send(ctx, method, path)
			if err != nil {
				return nil, err
			}
		}
	}

	switch {
	case status == http.StatusNotFound:
		return nil, errors.Mark(parseAPIError(status, body), ErrNotFound)
	case status < 200 || status >= 300:
		return nil, parseAPIError(status, body)
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, method, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	tok, err := c.tokens.Token()
	switch {
	case err == nil:
		tok.SetAuthHeader(req)
	case errors.Is(err, ErrNoCredentials):
	default:
		return 0, nil, errors.Wrap(err, "failed to get token")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to read response body")
	}
	return resp.StatusCode, body, nil
}
