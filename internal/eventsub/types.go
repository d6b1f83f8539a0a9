// Package eventsub implements the EventSub webhook core: signature
// verification, notification deduplication and dispatch, and the remote
// subscription lifecycle.
package eventsub

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message types Twitch sends to the webhook callback.
const (
	MessageTypeNotification = "notification"
	MessageTypeVerification = "webhook_callback_verification"
	MessageTypeRevocation   = "revocation"
)

// Subscription types this service understands.
const (
	TypeChannelUpdate = "channel.update"
	TypeStreamOnline  = "stream.online"
	TypeStreamOffline = "stream.offline"
)

// Headers on every EventSub webhook delivery.
const (
	HeaderMessageType      = "Twitch-Eventsub-Message-Type"
	HeaderMessageID        = "Twitch-Eventsub-Message-Id"
	HeaderMessageTimestamp = "Twitch-Eventsub-Message-Timestamp"
	HeaderMessageSignature = "Twitch-Eventsub-Message-Signature"
)

// StatusEnabled is the remote status of a healthy subscription.
const StatusEnabled = "enabled"

// ErrUnknownEventType is returned when a notification carries a subscription
// type this service does not decode.
var ErrUnknownEventType = errors.New("unknown event type")

// Transport holds the delivery parameters of a subscription. Twitch never
// echoes the secret back on reads.
type Transport struct {
	Method   string `json:"method"`
	Callback string `json:"callback"`
	Secret   string `json:"secret,omitempty"`
}

// Subscription is a remote-side EventSub registration. Identity is the
// remote-assigned id; the struct is immutable except by re-fetch.
type Subscription struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Type      string            `json:"type"`
	Version   string            `json:"version"`
	Condition map[string]string `json:"condition"`
	CreatedAt time.Time         `json:"created_at"`
	Transport Transport         `json:"transport"`
	Cost      int               `json:"cost"`
}

// SubscriptionRequest is the creation payload sent to Twitch. It always
// carries this process's own callback URL and shared secret.
type SubscriptionRequest struct {
	Type      string            `json:"type"`
	Version   string            `json:"version"`
	Condition map[string]string `json:"condition"`
	Transport Transport         `json:"transport"`
}

// NewSubscriptionRequest builds a version-1 webhook subscription request.
func NewSubscriptionRequest(subType string, condition map[string]string, callbackURL, secret string) SubscriptionRequest {
	return SubscriptionRequest{
		Type:      subType,
		Version:   "1",
		Condition: condition,
		Transport: Transport{
			Method:   "webhook",
			Callback: callbackURL,
			Secret:   secret,
		},
	}
}

// Event is the closed set of notification payloads, selected by the
// subscription type of the delivery.
type Event interface {
	isEvent()
}

// ChannelUpdateEvent is the payload of a channel.update notification.
type ChannelUpdateEvent struct {
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	BroadcasterUserName  string `json:"broadcaster_user_name"`
	Title                string `json:"title"`
	Language             string `json:"language"`
	CategoryID           string `json:"category_id"`
	CategoryName         string `json:"category_name"`
	IsMature             bool   `json:"is_mature"`
}

// StreamOnlineEvent is the payload of a stream.online notification.
type StreamOnlineEvent struct {
	ID                   string    `json:"id"`
	BroadcasterUserID    string    `json:"broadcaster_user_id"`
	BroadcasterUserLogin string    `json:"broadcaster_user_login"`
	BroadcasterUserName  string    `json:"broadcaster_user_name"`
	Type                 string    `json:"type"`
	StartedAt            time.Time `json:"started_at"`
}

// StreamOfflineEvent is the payload of a stream.offline notification.
type StreamOfflineEvent struct {
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	BroadcasterUserName  string `json:"broadcaster_user_name"`
}

func (*ChannelUpdateEvent) isEvent() {}
func (*StreamOnlineEvent) isEvent()  {}
func (*StreamOfflineEvent) isEvent() {}

// Notification is an inbound webhook payload: the subscription that caused
// the delivery plus the decoded event.
type Notification struct {
	Subscription Subscription
	Event        Event
}

// ParseNotification decodes a notification body, selecting the event shape
// from the subscription type. Unknown types are a decode error, never a
// silent default.
func ParseNotification(body []byte) (*Notification, error) {
	var raw struct {
		Subscription Subscription    `json:"subscription"`
		Event        json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}

	var event Event
	switch raw.Subscription.Type {
	case TypeChannelUpdate:
		event = &ChannelUpdateEvent{}
	case TypeStreamOnline:
		event = &StreamOnlineEvent{}
	case TypeStreamOffline:
		event = &StreamOfflineEvent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, raw.Subscription.Type)
	}

	if err := json.Unmarshal(raw.Event, event); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", raw.Subscription.Type, err)
	}

	return &Notification{Subscription: raw.Subscription, Event: event}, nil
}

// Envelope is the normalized payload forwarded to the message bus.
type Envelope struct {
	Type  string `json:"type"`
	Event Event  `json:"event"`
}

// Envelope returns the publishable form of the notification.
func (n *Notification) Envelope() Envelope {
	return Envelope{Type: n.Subscription.Type, Event: n.Event}
}
