package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook metrics
var (
	// WebhookMessagesTotal tracks inbound EventSub messages by message type and outcome.
	WebhookMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsub_webhook_messages_total",
			Help: "Inbound EventSub webhook messages by message type and outcome",
		},
		[]string{"message_type", "outcome"},
	)

	// DuplicateNotificationsTotal counts notifications skipped by the dedup window.
	DuplicateNotificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventsub_duplicate_notifications_total",
			Help: "Notifications skipped because their message id was already processed",
		},
	)

	// SignatureFailuresTotal counts webhook deliveries rejected during signature verification.
	SignatureFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsub_signature_failures_total",
			Help: "Webhook deliveries rejected during signature verification by reason",
		},
		[]string{"reason"},
	)
)

// Upstream API metrics
var (
	// UpstreamRequestsTotal tracks Twitch API calls by method and HTTP status.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twitch_api_requests_total",
			Help: "Twitch API requests by method and HTTP status",
		},
		[]string{"method", "status"},
	)

	// TokenRefreshesTotal tracks app access token refresh attempts by result.
	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twitch_token_refreshes_total",
			Help: "App access token refresh attempts by result",
		},
		[]string{"status"},
	)
)

// Publisher metrics
var (
	// PublishesTotal tracks event envelope publishes by result.
	PublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsub_publishes_total",
			Help: "Event envelopes published to the fanout exchange by result",
		},
		[]string{"status"},
	)
)
