// Package twitch implements the authenticated Twitch API client and its
// app-access-token cache.
package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/parmenashp/felpsbot-backend/internal/metrics"
)

const requestTimeout = 10 * time.Second

// HTTPError is returned for any non-2xx response from the Twitch API.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("twitch API returned status %d: %s", e.StatusCode, e.Body)
}

// Message extracts the error message Twitch embeds in its error bodies.
func (e *HTTPError) Message() string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Body, &payload); err != nil || payload.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return payload.Message
}

// Response is a successful (2xx) Twitch API response.
type Response struct {
	StatusCode int
	Body       []byte
}

type tokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client makes authenticated requests against the Twitch Helix API. It
// ensures a fresh app access token before every call and attaches the
// Client-ID and Authorization headers. There is no automatic retry and no
// rate-limit handling.
type Client struct {
	clientID   string
	baseURL    string
	tokens     tokenProvider
	httpClient *http.Client
}

func NewClient(clientID, baseURL string, tokens tokenProvider) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		clientID:   clientID,
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Get makes an authenticated GET request to the Twitch API.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Post makes an authenticated POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

// Delete makes an authenticated DELETE request to the Twitch API.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, query, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := c.baseURL + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("Twitch API request", "method", method, "url", reqURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(method, "transport_error").Inc()
		return nil, fmt.Errorf("request to %s failed: %w", reqURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", reqURL, err)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: respBody}
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
