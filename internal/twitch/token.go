package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/parmenashp/felpsbot-backend/internal/metrics"
)

const (
	// A token this close to expiry is treated as expired so requests in
	// flight never race the actual expiration.
	tokenExpiryMargin = 5 * time.Second

	oauthTimeout = 10 * time.Second
)

// TokenError indicates that a client-credentials exchange failed. Cached
// state is left untouched when it is returned.
type TokenError struct {
	StatusCode int
	Err        error
}

func (e *TokenError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token request failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("token request failed: %v", e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// AccessToken is an app access token together with its expiry.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenStore persists tokens across process restarts (Redis in production).
type TokenStore interface {
	// Get returns the stored token and its remaining TTL; ttl <= 0 means miss.
	Get(ctx context.Context) (string, time.Duration, error)
	Set(ctx context.Context, value string, ttl time.Duration) error
}

// TokenSource caches a single app access token obtained via the
// client-credentials grant and refreshes it on demand.
type TokenSource struct {
	clientID     string
	clientSecret string
	oauthURL     string
	store        TokenStore
	clock        clockwork.Clock
	httpClient   *http.Client

	mu    sync.Mutex
	token *AccessToken

	group singleflight.Group
}

func NewTokenSource(clientID, clientSecret, oauthURL string, store TokenStore, clock clockwork.Clock) *TokenSource {
	return &TokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		oauthURL:     oauthURL,
		store:        store,
		clock:        clock,
		httpClient:   &http.Client{Timeout: oauthTimeout},
	}
}

// Authorize primes the token cache at startup. It adopts a token from the
// shared store when one exists, otherwise it generates a fresh one.
func (ts *TokenSource) Authorize(ctx context.Context) error {
	value, ttl, err := ts.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read token store: %w", err)
	}

	if value == "" {
		slog.Info("No cached access token found, generating new one")
		if _, err := ts.refresh(ctx); err != nil {
			return err
		}
		return nil
	}

	ts.mu.Lock()
	ts.token = &AccessToken{
		Value: value,
		// Shave a few seconds off so we refresh before Redis expires the key.
		ExpiresAt: ts.clock.Now().Add(ttl - tokenExpiryMargin),
	}
	ts.mu.Unlock()

	slog.Info("Adopted cached access token", "ttl_seconds", ttl.Seconds())
	return nil
}

// Token returns a valid access token, refreshing it first when the cached one
// is missing or within the expiry margin. Concurrent callers share a single
// in-flight refresh.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	if tok := ts.current(); tok != nil {
		return tok.Value, nil
	}

	value, err, _ := ts.group.Do("refresh", func() (any, error) {
		// Another caller may have refreshed while we waited for the flight.
		if tok := ts.current(); tok != nil {
			return tok.Value, nil
		}
		tok, err := ts.refresh(ctx)
		if err != nil {
			return nil, err
		}
		return tok.Value, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// current returns the cached token if it is still comfortably valid.
func (ts *TokenSource) current() *AccessToken {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != nil && ts.token.ExpiresAt.Sub(ts.clock.Now()) > tokenExpiryMargin {
		return ts.token
	}
	return nil
}

// refresh performs a client-credentials exchange and updates both the
// in-memory token and the shared store. On failure neither is touched.
func (ts *TokenSource) refresh(ctx context.Context) (*AccessToken, error) {
	slog.Info("Generating new Twitch access token")

	form := url.Values{}
	form.Set("client_id", ts.clientID)
	form.Set("client_secret", ts.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TokenError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return nil, &TokenError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return nil, &TokenError{Err: err}
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return nil, &TokenError{StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid token response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || result.AccessToken == "" {
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return nil, &TokenError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("no access token in response: %s", result.Message),
		}
	}

	ttl := time.Duration(result.ExpiresIn) * time.Second
	token := &AccessToken{
		Value:     result.AccessToken,
		ExpiresAt: ts.clock.Now().Add(ttl),
	}

	ts.mu.Lock()
	ts.token = token
	ts.mu.Unlock()

	if err := ts.store.Set(ctx, token.Value, ttl); err != nil {
		// The in-memory token is still valid; losing the shared copy only
		// costs an extra exchange after a restart.
		slog.Warn("Failed to persist access token to shared store", "error", err)
	}

	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	slog.Info("New Twitch access token generated", "expires_in_seconds", result.ExpiresIn)
	return token, nil
}
