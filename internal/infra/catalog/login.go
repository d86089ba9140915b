package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const loginPath = "/auth/login/"

// User is the account a session belongs to.
type User struct {
	ID       string
	Email    string
	Username string
	Role     string
}

// Key returns the identity persisted state is namespaced by: the id, else the email.
func (u User) Key() string {
	if u.ID != "" {
		return u.ID
	}
	return u.Email
}

// Session is the credential pair issued by a login.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         User
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    struct {
		ID       flexibleID `json:"id"`
		Email    string     `json:"email"`
		Username string     `json:"username"`
		Role     string     `json:"role"`
	} `json:"user"`
}

// Login exchanges email and password for a session.
func Login(ctx context.Context, baseURL, email, password string, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode login request")
	}

	url := strings.TrimRight(baseURL, "/") + loginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create login request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send login request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read login response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrap(parseAPIError(resp.StatusCode, data), "login rejected")
	}

	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, errors.Wrap(err, "failed to parse login response")
	}
	if lr.Access == "" || lr.User.Email == "" {
		return nil, errors.New("login response is missing the token or the user")
	}

	session := &Session{
		AccessToken:  lr.Access,
		RefreshToken: lr.Refresh,
		User: User{
			ID:       string(lr.User.ID),
			Email:    lr.User.Email,
			Username: lr.User.Username,
			Role:     strings.ToLower(lr.User.Role),
		},
	}
	zlog.Info().Msgf("catalog: logged in as %s", session.User.Key())
	return session, nil
}
