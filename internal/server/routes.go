package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Webhook callback (signature-verified, no admin auth)
	s.echo.POST("/eventsub/callback", s.handleEventSubCallback, s.verifySignature)

	// Administrative surface (bearer key; real authz lives in the admin layer)
	s.echo.GET("/eventsub/", s.handleListSubscriptions, s.requireAPIKey)
	s.echo.POST("/eventsub/", s.handleCreateSubscription, s.requireAPIKey)
	s.echo.DELETE("/eventsub/", s.handleDeleteSubscription, s.requireAPIKey)

	// Chat-bot command endpoint
	s.echo.GET("/streamgametime/:streamer_id", s.handleStreamGameTime)
}
