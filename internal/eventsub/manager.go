package eventsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/parmenashp/felpsbot-backend/internal/logging"
	"github.com/parmenashp/felpsbot-backend/internal/twitch"
)

const subscriptionsPath = "eventsub/subscriptions"

// ErrAlreadyExists is returned by Subscribe when an equivalent enabled
// subscription already points at this process's callback.
var ErrAlreadyExists = errors.New("subscription already exists")

type apiClient interface {
	Get(ctx context.Context, path string, query url.Values) (*twitch.Response, error)
	Post(ctx context.Context, path string, body any) (*twitch.Response, error)
	Delete(ctx context.Context, path string, query url.Values) (*twitch.Response, error)
}

// Manager owns the lifecycle of the remote EventSub subscriptions that cause
// Twitch to deliver webhooks to this process: create, list, delete, and
// recovery when Twitch revokes one.
type Manager struct {
	api         apiClient
	callbackURL string
	secret      string

	mu            sync.Mutex
	subscriptions []Subscription
}

func NewManager(api apiClient, callbackURL, secret string) *Manager {
	return &Manager{
		api:         api,
		callbackURL: callbackURL,
		secret:      secret,
	}
}

// NewRequest builds a creation request for one of the supported subscription
// types, keyed on the broadcaster.
func (m *Manager) NewRequest(subType, broadcasterUserID string) SubscriptionRequest {
	condition := map[string]string{"broadcaster_user_id": broadcasterUserID}
	return NewSubscriptionRequest(subType, condition, m.callbackURL, m.secret)
}

// FetchSubscriptions retrieves the full subscription list from Twitch and
// replaces the manager's snapshot. The snapshot is advisory only; it is
// re-fetched before any idempotency decision.
func (m *Manager) FetchSubscriptions(ctx context.Context) ([]Subscription, error) {
	slog.Info("Fetching eventsub subscriptions")

	resp, err := m.api.Get(ctx, subscriptionsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}

	var envelope struct {
		Data []Subscription `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode subscription list: %w", err)
	}

	m.mu.Lock()
	m.subscriptions = envelope.Data
	m.mu.Unlock()

	slog.Info("Fetched subscriptions", "count", len(envelope.Data))
	return envelope.Data, nil
}

// Subscriptions returns a copy of the last fetched snapshot.
func (m *Manager) Subscriptions() []Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Subscription, len(m.subscriptions))
	copy(out, m.subscriptions)
	return out
}

// Subscribe creates a subscription on Twitch. With checkIfExists set, the
// list is re-fetched first and an enabled subscription matching type,
// condition and callback short-circuits with ErrAlreadyExists and no POST.
// Success is exactly HTTP 202 with the created subscription body.
func (m *Manager) Subscribe(ctx context.Context, req SubscriptionRequest, checkIfExists bool) (*Subscription, error) {
	slog.Info("Subscribing to eventsub event", "type", req.Type, "condition", req.Condition)

	if checkIfExists {
		subs, err := m.FetchSubscriptions(ctx)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			if m.matchesRequest(sub, req) {
				slog.Info("Subscription already exists, skipping", "type", req.Type, "condition", req.Condition)
				return nil, ErrAlreadyExists
			}
		}
	}

	resp, err := m.api.Post(ctx, subscriptionsPath, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("unexpected status %d creating subscription", resp.StatusCode)
	}

	var envelope struct {
		Data []Subscription `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode created subscription: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, errors.New("no subscription returned by Twitch")
	}

	created := envelope.Data[0]
	slog.Info("Subscription accepted", "type", created.Type, "subscription_id", created.ID)
	return &created, nil
}

func (m *Manager) matchesRequest(sub Subscription, req SubscriptionRequest) bool {
	return sub.Type == req.Type &&
		sub.Status == StatusEnabled &&
		sub.Transport.Callback == req.Transport.Callback &&
		conditionsEqual(sub.Condition, req.Condition)
}

func conditionsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Unsubscribe deletes a subscription by id. Success is exactly HTTP 204.
func (m *Manager) Unsubscribe(ctx context.Context, sub Subscription) error {
	slog.Info("Unsubscribing from eventsub event", "type", sub.Type, "subscription_id", sub.ID)

	query := url.Values{"id": {sub.ID}}
	resp, err := m.api.Delete(ctx, subscriptionsPath, query)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d deleting subscription", resp.StatusCode)
	}

	slog.Info("Unsubscription accepted", "subscription_id", sub.ID)
	return nil
}

// HandleRevocation reacts to a remote-initiated revocation by resubscribing
// exactly once, skipping the existence check. Failures are logged only: the
// webhook response has already acknowledged the revocation and Twitch must
// never see an error for it.
func (m *Manager) HandleRevocation(ctx context.Context, sub Subscription) {
	logger := logging.WithSubscription(sub.Type, sub.ID)
	logger.Warn("Received a revocation message from Twitch", "condition", sub.Condition, "status", sub.Status)
	logger.Info("Trying to resubscribe to this event")

	req := NewSubscriptionRequest(sub.Type, sub.Condition, m.callbackURL, m.secret)
	if _, err := m.Subscribe(ctx, req, false); err != nil {
		logger.Error("Failed to resubscribe after revocation", "condition", sub.Condition, "error", err)
	}
}
