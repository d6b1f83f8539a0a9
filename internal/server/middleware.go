package server

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/parmenashp/felpsbot-backend/internal/eventsub"
	"github.com/parmenashp/felpsbot-backend/internal/metrics"
)

// rawBodyKey carries the raw request bytes from the signature middleware to
// the webhook handler, so the HMAC and the parser see the same bytes.
const rawBodyKey = "eventsub.rawBody"

// verifySignature authenticates webhook deliveries before any parsing.
// Missing headers are a 400, a bad HMAC is a 401.
func (s *Server) verifySignature(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Could not read body.")
		}
		// The handler may still bind the body through Echo.
		c.Request().Body = io.NopCloser(bytes.NewReader(body))

		err = eventsub.VerifySignature(s.config.EventSubSecret, c.Request().Header, body)
		if errors.Is(err, eventsub.ErrMissingSignature) {
			slog.Info("Missing Twitch EventSub signature")
			metrics.SignatureFailuresTotal.WithLabelValues("missing").Inc()
			return echo.NewHTTPError(http.StatusBadRequest, "Missing signature.")
		}
		if errors.Is(err, eventsub.ErrInvalidSignature) {
			slog.Warn("Invalid Twitch EventSub signature")
			metrics.SignatureFailuresTotal.WithLabelValues("invalid").Inc()
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid signature.")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Could not verify signature.")
		}

		c.Set(rawBodyKey, body)
		return next(c)
	}
}

// requireAPIKey guards the administrative surface with a static bearer key.
// Scoped per-user authorization is handled by the auth gateway in front of
// this service.
func (s *Server) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminAPIKey)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key.")
		}
		return next(c)
	}
}
