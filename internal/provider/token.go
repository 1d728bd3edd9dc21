// internal/provider/token.go
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TokenSource yields a bearer token for provider calls. It is an
// explicit, injected dependency; there is no module-level token state.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// clientCredentialsSource caches a client-credentials token and refreshes
// it shortly before expiry. Concurrent refreshes collapse into a single
// upstream request via singleflight.
type clientCredentialsSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mtx     sync.Mutex
	token   string
	expires time.Time

	group singleflight.Group
}

// refreshMargin is how long before expiry a cached token is discarded.
const refreshMargin = 30 * time.Second

func NewTokenSource(tokenURL, clientID, clientSecret string, timeout time.Duration) TokenSource {
	return &clientCredentialsSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (s *clientCredentialsSource) Token(ctx context.Context) (string, error) {
	s.mtx.Lock()
	if s.token != "" && time.Now().Add(refreshMargin).Before(s.expires) {
		token := s.token
		s.mtx.Unlock()
		return token, nil
	}
	s.mtx.Unlock()

	result, err, _ := s.group.Do("token", func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

func (s *clientCredentialsSource) fetch(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: building token request: %v", ErrUnavailable, err)
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", ErrUnavailable, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: token endpoint returned an empty token", ErrUnavailable)
	}

	s.mtx.Lock()
	s.token = body.AccessToken
	s.expires = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	s.mtx.Unlock()

	return body.AccessToken, nil
}
