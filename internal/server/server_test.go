package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/parmenashp/felpsbot-backend/internal/config"
	"github.com/parmenashp/felpsbot-backend/internal/eventsub"
	"github.com/parmenashp/felpsbot-backend/internal/gametime"
)

const (
	testEventSubSecret = "0123456789abcdef"
	testAdminKey       = "test-admin-key"
)

type fakeProcessor struct {
	result *eventsub.Result
	err    error

	calls    int
	lastBody []byte
}

func (f *fakeProcessor) Process(ctx context.Context, header http.Header, body []byte) (*eventsub.Result, error) {
	f.calls++
	f.lastBody = body
	return f.result, f.err
}

type fakeManager struct {
	subscriptions []eventsub.Subscription
	fetchErr      error

	subscribed   *eventsub.Subscription
	subscribeErr error
	lastRequest  eventsub.SubscriptionRequest

	unsubscribed []string
	unsubErr     error
}

func (f *fakeManager) FetchSubscriptions(ctx context.Context) ([]eventsub.Subscription, error) {
	return f.subscriptions, f.fetchErr
}

func (f *fakeManager) NewRequest(subType, broadcasterUserID string) eventsub.SubscriptionRequest {
	return eventsub.NewSubscriptionRequest(subType,
		map[string]string{"broadcaster_user_id": broadcasterUserID},
		"https://backend.example.com/eventsub/callback", testEventSubSecret)
}

func (f *fakeManager) Subscribe(ctx context.Context, req eventsub.SubscriptionRequest, checkIfExists bool) (*eventsub.Subscription, error) {
	f.lastRequest = req
	return f.subscribed, f.subscribeErr
}

func (f *fakeManager) Unsubscribe(ctx context.Context, sub eventsub.Subscription) error {
	if f.unsubErr != nil {
		return f.unsubErr
	}
	f.unsubscribed = append(f.unsubscribed, sub.ID)
	return nil
}

type fakeGameTime struct {
	message  string
	lastMsgs gametime.Messages
}

func (f *fakeGameTime) StreamGameTime(ctx context.Context, streamerID string, msgs gametime.Messages) string {
	f.lastMsgs = msgs
	return f.message
}

type fixture struct {
	server    *Server
	processor *fakeProcessor
	manager   *fakeManager
	gametime  *fakeGameTime
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Port:           "8080",
		EventSubSecret: testEventSubSecret,
		AdminAPIKey:    testAdminKey,
		BackendBaseURL: "https://backend.example.com",
	}
	processor := &fakeProcessor{result: &eventsub.Result{Status: http.StatusOK, Body: "Acknowledged"}}
	manager := &fakeManager{}
	gt := &fakeGameTime{message: "Felps está offline."}

	return &fixture{
		server:    NewServer(cfg, processor, manager, gt, nil, nil, nil),
		processor: processor,
		manager:   manager,
		gametime:  gt,
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.echo.ServeHTTP(rec, req)
	return rec
}

// signedWebhookRequest builds a POST to the callback with a valid HMAC.
func signedWebhookRequest(msgType, messageID, body string) *http.Request {
	const timestamp = "2023-04-11T10:00:00Z"

	mac := hmac.New(sha256.New, []byte(testEventSubSecret))
	mac.Write([]byte(messageID))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(body))

	req := httptest.NewRequest(http.MethodPost, "/eventsub/callback", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(eventsub.HeaderMessageType, msgType)
	req.Header.Set(eventsub.HeaderMessageID, messageID)
	req.Header.Set(eventsub.HeaderMessageTimestamp, timestamp)
	req.Header.Set(eventsub.HeaderMessageSignature, "sha256="+hex.EncodeToString(mac.Sum(nil)))
	return req
}
