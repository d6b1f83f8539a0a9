package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parmenashp/felpsbot-backend/internal/gametime"
)

// handleStreamGameTime returns how long a streamer has been playing the
// current game as plain text. The message templates are overridable per
// request so chat bots can localize them.
func (s *Server) handleStreamGameTime(c echo.Context) error {
	msgs := gametime.DefaultMessages()
	if v := c.QueryParam("offline"); v != "" {
		msgs.Offline = v
	}
	if v := c.QueryParam("online"); v != "" {
		msgs.Online = v
	}
	if v := c.QueryParam("unknown"); v != "" {
		msgs.Unknown = v
	}
	if v := c.QueryParam("error"); v != "" {
		msgs.Error = v
	}

	message := s.gametime.StreamGameTime(c.Request().Context(), c.Param("streamer_id"), msgs)
	return c.String(http.StatusOK, message)
}
