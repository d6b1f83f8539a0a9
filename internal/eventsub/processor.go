package eventsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/parmenashp/felpsbot-backend/internal/logging"
	"github.com/parmenashp/felpsbot-backend/internal/metrics"
)

// dedupWindowSize is how many recent message ids are remembered. Twitch only
// redelivers within a short window, so a small bound is enough.
const dedupWindowSize = 15

const acknowledgeBody = "Acknowledged"

// RejectionError is an intentional non-200 response to Twitch: missing or
// invalid headers, unknown types, malformed bodies. Everything else raised
// after header parsing must be swallowed into a 200 so Twitch never counts
// the endpoint as failing and disables the subscription.
type RejectionError struct {
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected with status %d: %s", e.Status, e.Message)
}

// Result is the response the webhook handler must write.
type Result struct {
	Status int
	Body   string
}

func acknowledged() *Result {
	return &Result{Status: http.StatusOK, Body: acknowledgeBody}
}

// Projector records "last time an entity was observed in state X" from
// channel.update notifications.
type Projector interface {
	UpsertGame(ctx context.Context, gameID, gameName string) error
	UpsertLastPlayed(ctx context.Context, streamerID, gameID string, observedAt time.Time) error
}

// Publisher forwards normalized envelopes to the durable fanout exchange.
type Publisher interface {
	Publish(ctx context.Context, envelope Envelope) error
}

type revocationHandler interface {
	HandleRevocation(ctx context.Context, sub Subscription)
}

// Processor drives the webhook message state machine: verify (done by the
// caller), dedup, dispatch, project, publish, acknowledge.
type Processor struct {
	dedup     *Deduplicator
	projector Projector
	publisher Publisher
	manager   revocationHandler
	clock     clockwork.Clock
}

func NewProcessor(projector Projector, publisher Publisher, manager revocationHandler, clock clockwork.Clock) *Processor {
	return &Processor{
		dedup:     NewDeduplicator(dedupWindowSize),
		projector: projector,
		publisher: publisher,
		manager:   manager,
		clock:     clock,
	}
}

// Process handles one signature-verified webhook delivery. It returns a
// *RejectionError for intentional 4xx responses; any other error must be
// converted to a 200 acknowledgment by the caller.
func (p *Processor) Process(ctx context.Context, header http.Header, body []byte) (*Result, error) {
	msgType := header.Get(HeaderMessageType)
	if msgType == "" {
		slog.Info("Invalid eventsub request, missing message type header")
		metrics.WebhookMessagesTotal.WithLabelValues("none", "rejected").Inc()
		return nil, &RejectionError{Status: http.StatusBadRequest, Message: "Missing message type header."}
	}

	slog.Info("Received an eventsub webhook message", "message_type", msgType)

	switch msgType {
	case MessageTypeNotification:
		return p.handleNotification(ctx, header.Get(HeaderMessageID), body)
	case MessageTypeVerification:
		return p.handleVerification(body)
	case MessageTypeRevocation:
		return p.handleRevocation(ctx, body)
	default:
		metrics.WebhookMessagesTotal.WithLabelValues(msgType, "rejected").Inc()
		return nil, &RejectionError{Status: http.StatusBadRequest, Message: "Invalid message type."}
	}
}

func (p *Processor) handleNotification(ctx context.Context, messageID string, body []byte) (*Result, error) {
	notification, err := ParseNotification(body)
	if err != nil {
		slog.Info("Rejecting undecodable notification", "error", err)
		metrics.WebhookMessagesTotal.WithLabelValues(MessageTypeNotification, "rejected").Inc()
		return nil, &RejectionError{Status: http.StatusBadRequest, Message: "Invalid notification body."}
	}

	subType := notification.Subscription.Type
	slog.Info("Received a notification", "type", subType, "condition", notification.Subscription.Condition)

	// Twitch can deliver the same notification more than once. The window
	// check and the record are a single atomic step so concurrent
	// redeliveries cannot both pass.
	if !p.dedup.CheckAndRecord(messageID) {
		slog.Info("Notification already processed, skipping", "message_id", messageID)
		metrics.DuplicateNotificationsTotal.Inc()
		metrics.WebhookMessagesTotal.WithLabelValues(MessageTypeNotification, "duplicate").Inc()
		return acknowledged(), nil
	}

	if event, ok := notification.Event.(*ChannelUpdateEvent); ok {
		if err := p.projectChannelUpdate(ctx, event); err != nil {
			return nil, err
		}
	}

	slog.Info("Publishing notification", "type", subType)
	if err := p.publisher.Publish(ctx, notification.Envelope()); err != nil {
		// Never retried and never reflected in the webhook response.
		slog.Error("Failed to publish notification", "type", subType, "error", err)
	}

	metrics.WebhookMessagesTotal.WithLabelValues(MessageTypeNotification, "processed").Inc()
	return acknowledged(), nil
}

func (p *Processor) projectChannelUpdate(ctx context.Context, event *ChannelUpdateEvent) error {
	if event.CategoryID == "" {
		slog.Info("Game is not set, skipping last time played update")
		return nil
	}

	logger := logging.WithBroadcaster(event.BroadcasterUserID)
	logger.Info("Updating last time played", "category_name", event.CategoryName)

	if err := p.projector.UpsertGame(ctx, event.CategoryID, event.CategoryName); err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}
	if err := p.projector.UpsertLastPlayed(ctx, event.BroadcasterUserID, event.CategoryID, p.clock.Now()); err != nil {
		return fmt.Errorf("failed to upsert last time played: %w", err)
	}
	return nil
}

func (p *Processor) handleVerification(body []byte) (*Result, error) {
	var payload struct {
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhookMessagesTotal.WithLabelValues(MessageTypeVerification, "rejected").Inc()
		return nil, &RejectionError{Status: http.StatusBadRequest, Message: "Invalid verification body."}
	}

	slog.Info("Responding to challenge")
	metrics.WebhookMessagesTotal.WithLabelValues(MessageTypeVerification, "processed").Inc()

	// The challenge must be echoed back as the exact plain-text body; any
	// JSON wrapping fails the ownership handshake.
	return &Result{Status: http.StatusOK, Body: payload.Challenge}, nil
}

func (p *Processor) handleRevocation(ctx context.Context, body []byte) (*Result, error) {
	var payload struct {
		Subscription Subscription `json:"subscription"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhookMessagesTotal.WithLabelValues(MessageTypeRevocation, "rejected").Inc()
		return nil, &RejectionError{Status: http.StatusBadRequest, Message: "Invalid revocation body."}
	}

	p.manager.HandleRevocation(ctx, payload.Subscription)

	metrics.WebhookMessagesTotal.WithLabelValues(MessageTypeRevocation, "processed").Inc()
	return acknowledged(), nil
}
