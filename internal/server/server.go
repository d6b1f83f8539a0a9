// Package server wires the EventSub webhook, the administrative surface, and
// the chat-bot endpoints into an Echo application.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/parmenashp/felpsbot-backend/internal/config"
	"github.com/parmenashp/felpsbot-backend/internal/eventsub"
	"github.com/parmenashp/felpsbot-backend/internal/gametime"
)

// webhookProcessor handles one verified webhook delivery.
type webhookProcessor interface {
	Process(ctx context.Context, header http.Header, body []byte) (*eventsub.Result, error)
}

// subscriptionService is the administrative slice of the subscription manager.
type subscriptionService interface {
	FetchSubscriptions(ctx context.Context) ([]eventsub.Subscription, error)
	NewRequest(subType, broadcasterUserID string) eventsub.SubscriptionRequest
	Subscribe(ctx context.Context, req eventsub.SubscriptionRequest, checkIfExists bool) (*eventsub.Subscription, error)
	Unsubscribe(ctx context.Context, sub eventsub.Subscription) error
}

type gameTimeService interface {
	StreamGameTime(ctx context.Context, streamerID string, msgs gametime.Messages) string
}

type readiness interface {
	Ready() bool
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	processor webhookProcessor
	manager   subscriptionService
	gametime  gameTimeService
	pool      *pgxpool.Pool
	redis     *goredis.Client
	publisher readiness
}

func NewServer(cfg *config.Config, processor webhookProcessor, manager subscriptionService, gt gameTimeService, pool *pgxpool.Pool, redisClient *goredis.Client, publisher readiness) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		processor: processor,
		manager:   manager,
		gametime:  gt,
		pool:      pool,
		redis:     redisClient,
		publisher: publisher,
	}
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
