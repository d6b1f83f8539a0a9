package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parmenashp/felpsbot-backend/internal/eventsub"
	"github.com/parmenashp/felpsbot-backend/internal/twitch"
)

// handleEventSubCallback is the endpoint Twitch delivers webhooks to. After
// header parsing, every unexpected failure is converted to a 200: repeated
// non-2xx responses would make Twitch disable the subscription.
func (s *Server) handleEventSubCallback(c echo.Context) error {
	body, _ := c.Get(rawBodyKey).([]byte)

	result, err := s.processor.Process(c.Request().Context(), c.Request().Header, body)
	if err != nil {
		var rejection *eventsub.RejectionError
		if errors.As(err, &rejection) {
			return echo.NewHTTPError(rejection.Status, rejection.Message)
		}

		slog.Error("Error while processing eventsub callback", "error", err)
		return c.NoContent(http.StatusOK)
	}

	return c.String(result.Status, result.Body)
}

type createSubscriptionRequest struct {
	Type              string `json:"type"`
	BroadcasterUserID string `json:"broadcaster_user_id"`
}

func (s *Server) handleListSubscriptions(c echo.Context) error {
	subs, err := s.manager.FetchSubscriptions(c.Request().Context())
	if err != nil {
		return s.mapUpstreamError(err)
	}
	return c.JSON(http.StatusOK, subs)
}

func (s *Server) handleCreateSubscription(c echo.Context) error {
	var req createSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body.")
	}

	switch req.Type {
	case eventsub.TypeChannelUpdate, eventsub.TypeStreamOnline, eventsub.TypeStreamOffline:
	default:
		return echo.NewHTTPError(http.StatusBadRequest,
			"Invalid subscription type, must be one of: channel.update, stream.online, stream.offline")
	}
	if req.BroadcasterUserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "broadcaster_user_id is required.")
	}

	sub, err := s.manager.Subscribe(c.Request().Context(), s.manager.NewRequest(req.Type, req.BroadcasterUserID), true)
	if errors.Is(err, eventsub.ErrAlreadyExists) {
		return echo.NewHTTPError(http.StatusConflict, "The subscription already exists.")
	}
	if err != nil {
		return s.mapUpstreamError(err)
	}

	return c.JSON(http.StatusAccepted, sub)
}

func (s *Server) handleDeleteSubscription(c echo.Context) error {
	id := c.QueryParam("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required.")
	}

	subs, err := s.manager.FetchSubscriptions(c.Request().Context())
	if err != nil {
		return s.mapUpstreamError(err)
	}

	for _, sub := range subs {
		if sub.ID == id {
			if err := s.manager.Unsubscribe(c.Request().Context(), sub); err != nil {
				return s.mapUpstreamError(err)
			}
			return c.NoContent(http.StatusNoContent)
		}
	}

	return echo.NewHTTPError(http.StatusNotFound, "Subscription not found.")
}

// mapUpstreamError translates Twitch API failures for administrative
// callers: upstream 5xx (and transport errors) become 503, other statuses
// pass through with their message.
func (s *Server) mapUpstreamError(err error) error {
	var httpErr *twitch.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.Message())
	}

	slog.Error("Upstream Twitch API failure", "error", err)
	return echo.NewHTTPError(http.StatusServiceUnavailable, "Twitch API is unavailable.")
}
