package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenStore struct {
	mu    sync.Mutex
	value string
	ttl   time.Duration

	getErr error
	setErr error
}

func (f *fakeTokenStore) Get(ctx context.Context) (string, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.ttl, f.getErr
}

func (f *fakeTokenStore) Set(ctx context.Context, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.value = value
	f.ttl = ttl
	return nil
}

func oauthServer(t *testing.T, calls *atomic.Int32, token string, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		assert.Equal(t, "test-client-id", r.FormValue("client_id"))
		assert.Equal(t, "test-client-secret", r.FormValue("client_secret"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		})
	}))
}

func newTestTokenSource(oauthURL string, store TokenStore, clock clockwork.Clock) *TokenSource {
	return NewTokenSource("test-client-id", "test-client-secret", oauthURL, store, clock)
}

func TestTokenSource_Authorize_AdoptsStoredToken(t *testing.T) {
	var calls atomic.Int32
	srv := oauthServer(t, &calls, "fresh-token", 3600)
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	store := &fakeTokenStore{value: "stored-token", ttl: time.Hour}
	ts := newTestTokenSource(srv.URL, store, clock)

	require.NoError(t, ts.Authorize(context.Background()))
	assert.Equal(t, int32(0), calls.Load(), "a stored token must not trigger an exchange")

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored-token", token)
}

func TestTokenSource_Authorize_GeneratesWhenStoreEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := oauthServer(t, &calls, "fresh-token", 3600)
	defer srv.Close()

	store := &fakeTokenStore{}
	ts := newTestTokenSource(srv.URL, store, clockwork.NewFakeClock())

	require.NoError(t, ts.Authorize(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "fresh-token", store.value)
	assert.Equal(t, time.Hour, store.ttl)
}

func TestTokenSource_Authorize_StoreReadFailure(t *testing.T) {
	store := &fakeTokenStore{getErr: errors.New("redis down")}
	ts := newTestTokenSource("http://127.0.0.1:0", store, clockwork.NewFakeClock())

	err := ts.Authorize(context.Background())
	assert.ErrorContains(t, err, "failed to read token store")
}

func TestTokenSource_Token_RefreshesNearExpiry(t *testing.T) {
	var calls atomic.Int32
	srv := oauthServer(t, &calls, "renewed-token", 3600)
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	store := &fakeTokenStore{value: "stored-token", ttl: time.Minute}
	ts := newTestTokenSource(srv.URL, store, clock)
	require.NoError(t, ts.Authorize(context.Background()))

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored-token", token)

	// Within the expiry margin the cached token no longer counts as valid.
	clock.Advance(time.Minute)

	token, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "renewed-token", token)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenSource_Token_ConcurrentCallersShareOneRefresh(t *testing.T) {
	var calls atomic.Int32
	srv := oauthServer(t, &calls, "shared-token", 3600)
	defer srv.Close()

	ts := newTestTokenSource(srv.URL, &fakeTokenStore{}, clockwork.NewFakeClock())

	const workers = 16
	var wg sync.WaitGroup
	tokens := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = ts.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared-token", tokens[i])
	}
	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share a single exchange")
}

func TestTokenSource_Token_UpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": 403, "message": "invalid client secret"})
	}))
	defer srv.Close()

	ts := newTestTokenSource(srv.URL, &fakeTokenStore{}, clockwork.NewFakeClock())

	_, err := ts.Token(context.Background())
	var tokenErr *TokenError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, http.StatusForbidden, tokenErr.StatusCode)
	assert.ErrorContains(t, err, "invalid client secret")
}

func TestTokenSource_Token_EmptyAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "", "expires_in": 0})
	}))
	defer srv.Close()

	ts := newTestTokenSource(srv.URL, &fakeTokenStore{}, clockwork.NewFakeClock())

	_, err := ts.Token(context.Background())
	var tokenErr *TokenError
	assert.ErrorAs(t, err, &tokenErr)
}

func TestTokenSource_Refresh_StoreWriteFailureIsNotFatal(t *testing.T) {
	var calls atomic.Int32
	srv := oauthServer(t, &calls, "fresh-token", 3600)
	defer srv.Close()

	store := &fakeTokenStore{setErr: errors.New("redis down")}
	ts := newTestTokenSource(srv.URL, store, clockwork.NewFakeClock())

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func TestTokenSource_Refresh_FailureKeepsNothingCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := &fakeTokenStore{}
	ts := newTestTokenSource(srv.URL, store, clockwork.NewFakeClock())

	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.value)
}
