package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	refreshPath = "/auth/token/refresh/"
	// expiryLeeway refreshes a token this long before it actually expires.
	expiryLeeway = 30 * time.Second
)

// ErrNoCredentials is returned when no usable token is available.
var ErrNoCredentials = errors.New("no catalog credentials")

// tokenSource serves the access token and trades the refresh token for a new one
// when the access token expires or is rejected.
type tokenSource struct {
	mu         sync.Mutex
	baseURL    string
	httpClient *http.Client
	refresh    string
	token      *oauth2.Token
	now        func() time.Time
}

var _ oauth2.TokenSource = (*tokenSource)(nil)

func newTokenSource(baseURL, access, refresh string, httpClient *http.Client) *tokenSource {
	ts := &tokenSource{
		baseURL:    baseURL,
		httpClient: httpClient,
		refresh:    refresh,
		now:        time.Now,
	}
	if access != "" {
		ts.token = bearerToken(access)
	}
	return ts
}

// bearerToken wraps an access token, reading its expiry from the JWT exp claim.
// Tokens that are not JWTs never expire locally.
func bearerToken(access string) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		zlog.Debug().Msg("catalog: access token is not a JWT, expiry unknown")
		return tok
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tok.Expiry = exp.Time
	}
	return tok
}

func (ts *tokenSource) canRefresh() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.refresh != ""
}

// Token returns a valid token, refreshing it first when it is about to expire.
func (ts *tokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != nil && (ts.token.Expiry.IsZero() || ts.now().Add(expiryLeeway).Before(ts.token.Expiry)) {
		return ts.token, nil
	}
	if ts.refresh == "" {
		if ts.token != nil {
			// Let the backend decide.
			return ts.token, nil
		}
		return nil, ErrNoCredentials
	}

	if err := ts.refreshLocked(context.Background()); err != nil {
		return nil, err
	}
	return ts.token, nil
}

// Refresh forces a token refresh, e.g. after the backend rejected the current token.
func (ts *tokenSource) Refresh(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.refresh == "" {
		return ErrNoCredentials
	}
	return ts.refreshLocked(ctx)
}

func (ts *tokenSource) refreshLocked(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"refresh": ts.refresh})
	if err != nil {
		return errors.Wrap(err, "failed to encode refresh request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.baseURL+refreshPath, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create refresh request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send refresh request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read refresh response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Wrap(parseAPIError(resp.StatusCode, data), "token refresh rejected")
	}

	var tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := json.Unmarshal(data, &tokens); err != nil {
		return errors.Wrap(err, "failed to parse refresh response")
	}
	if tokens.Access == "" {
		return errors.New("refresh response carried no access token")
	}

	ts.token = bearerToken(tokens.Access)
	if tokens.Refresh != "" {
		ts.refresh = tokens.Refresh
	}
	zlog.Info().Msgf("catalog: refreshed access token expiry=%v", ts.token.Expiry)
	return nil
}
