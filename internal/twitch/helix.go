package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

const channelCacheTTL = 5 * time.Minute

// Channel is a row from the Helix /channels endpoint.
type Channel struct {
	BroadcasterID       string `json:"broadcaster_id"`
	BroadcasterLogin    string `json:"broadcaster_login"`
	BroadcasterName     string `json:"broadcaster_name"`
	BroadcasterLanguage string `json:"broadcaster_language"`
	GameID              string `json:"game_id"`
	GameName            string `json:"game_name"`
	Title               string `json:"title"`
	Delay               int    `json:"delay"`
}

// Stream is a row from the Helix /streams endpoint.
type Stream struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserLogin   string    `json:"user_login"`
	UserName    string    `json:"user_name"`
	GameID      string    `json:"game_id"`
	GameName    string    `json:"game_name"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
}

type jsonCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

type apiGetter interface {
	Get(ctx context.Context, path string, query url.Values) (*Response, error)
}

// Helix exposes the read endpoints the bot commands need. Channel lookups go
// through an explicit cache-aside with the key built at the call site.
type Helix struct {
	api   apiGetter
	cache jsonCache
}

func NewHelix(api apiGetter, cache jsonCache) *Helix {
	return &Helix{api: api, cache: cache}
}

// GetChannel fetches channel information for a broadcaster.
// Returns nil when the broadcaster does not exist.
func (h *Helix) GetChannel(ctx context.Context, broadcasterID string) (*Channel, error) {
	key := "twitch:channel:" + broadcasterID

	var cached Channel
	if ok, err := h.cache.GetJSON(ctx, key, &cached); err != nil {
		slog.Warn("Channel cache read failed", "key", key, "error", err)
	} else if ok {
		return &cached, nil
	}

	query := url.Values{"broadcaster_id": {broadcasterID}}
	resp, err := h.api.Get(ctx, "channels", query)
	if err != nil {
		return nil, err
	}

	channels, err := decodeData[Channel](resp.Body)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, nil
	}

	if err := h.cache.SetJSON(ctx, key, channels[0], channelCacheTTL); err != nil {
		slog.Warn("Channel cache write failed", "key", key, "error", err)
	}

	return &channels[0], nil
}

// GetStream fetches the live stream of a user. Returns nil when offline.
// Streams are not cached: staleness here would report wrong live status.
func (h *Helix) GetStream(ctx context.Context, userID string) (*Stream, error) {
	query := url.Values{"user_id": {userID}}
	resp, err := h.api.Get(ctx, "streams", query)
	if err != nil {
		return nil, err
	}

	streams, err := decodeData[Stream](resp.Body)
	if err != nil {
		return nil, err
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return &streams[0], nil
}

// decodeData unpacks the {"data": [...]} envelope Helix wraps every
// response in.
func decodeData[T any](body []byte) ([]T, error) {
	var envelope struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode twitch response: %w", err)
	}
	return envelope.Data, nil
}
