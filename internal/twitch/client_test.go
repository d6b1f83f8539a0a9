package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
}

func (s *staticTokens) Token(ctx context.Context) (string, error) {
	return s.token, s.err
}

func TestClient_Get_AttachesAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-client-id", r.Header.Get("Client-ID"))
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/channels", r.URL.Path)
		assert.Equal(t, "123", r.URL.Query().Get("broadcaster_id"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient("test-client-id", srv.URL, &staticTokens{token: "app-token"})

	resp, err := c.Get(context.Background(), "channels", url.Values{"broadcaster_id": {"123"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":[]}`, string(resp.Body))
}

func TestClient_Post_SendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "channel.update", payload["type"])

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient("test-client-id", srv.URL, &staticTokens{token: "app-token"})

	resp, err := c.Post(context.Background(), "eventsub/subscriptions", map[string]string{"type": "channel.update"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestClient_Delete_PassesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "sub-1", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient("test-client-id", srv.URL, &staticTokens{token: "app-token"})

	resp, err := c.Delete(context.Background(), "eventsub/subscriptions", url.Values{"id": {"sub-1"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestClient_NonSuccessStatusIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Too Many Requests","status":429,"message":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	c := NewClient("test-client-id", srv.URL, &staticTokens{token: "app-token"})

	_, err := c.Get(context.Background(), "channels", nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.Equal(t, "rate limit exceeded", httpErr.Message())
}

func TestClient_TokenFailurePropagates(t *testing.T) {
	c := NewClient("test-client-id", "http://127.0.0.1:0", &staticTokens{err: errors.New("token refresh failed")})

	_, err := c.Get(context.Background(), "channels", nil)
	assert.ErrorContains(t, err, "token refresh failed")
}

func TestClient_NoRetryOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("test-client-id", srv.URL, &staticTokens{token: "app-token"})

	_, err := c.Get(context.Background(), "channels", nil)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestHTTPError_MessageFallback(t *testing.T) {
	err := &HTTPError{StatusCode: http.StatusBadGateway, Body: []byte("not json")}
	assert.Equal(t, "Bad Gateway", err.Message())
}

func TestNewClient_NormalizesBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/helix/channels", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient("test-client-id", srv.URL+"/helix", &staticTokens{token: "app-token"})

	_, err := c.Get(context.Background(), "/channels", nil)
	assert.NoError(t, err)
}
