package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/bizcache/internal/profile"
	"github.com/hrygo/bizcache/server/internal/observability"
	ratelimit "github.com/hrygo/bizcache/server/middleware"
	apiv1 "github.com/hrygo/bizcache/server/router/api/v1"
	"github.com/hrygo/bizcache/store"
)

const (
	rateLimitPruneInterval = time.Minute
	rateLimitIdleTimeout   = 10 * time.Minute
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer  *echo.Echo
	metrics     *observability.Metrics
	rateLimiter *ratelimit.RateLimiter
	logger      *slog.Logger
}

// NewServer wires the middleware and routes around s.
func NewServer(profile *profile.Profile, s *store.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true

	metrics := observability.NewMetrics()
	if err := metrics.RegisterCache("app", s.Cache()); err != nil {
		return nil, errors.Wrap(err, "failed to register cache metrics")
	}

	rateLimiter := ratelimit.NewRateLimiter(profile.RateLimitRPS, profile.RateLimitBurst)
	if profile.IsProd() && profile.Instances > 1 {
		logger.Warn("rate limits are kept in memory and enforced per instance", "instances", profile.Instances)
	}

	server := &Server{
		Profile:     profile,
		Store:       s,
		echoServer:  echoServer,
		metrics:     metrics,
		rateLimiter: rateLimiter,
		logger:      logger,
	}

	echoServer.HTTPErrorHandler = apiv1.ErrorHandler(logger)
	echoServer.Use(middleware.Recover())
	echoServer.Use(observability.RequestLogger(logger, metrics))

	// Healthz endpoint.
	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": profile.Version})
	})
	echoServer.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := echoServer.Group("/api/v1", rateLimiter.Middleware(metrics.RecordRateLimited))
	apiv1.NewAPIV1Service(profile, s).RegisterRoutes(api)

	return server, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the configured address and serves until Shutdown is called or
// ctx is done. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	address := net.JoinHostPort(s.Profile.Addr, fmt.Sprintf("%d", s.Profile.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}

	go s.rateLimiter.Run(ctx, rateLimitPruneInterval, rateLimitIdleTimeout)

	s.echoServer.Listener = listener
	s.logger.Info("start HTTP server", "address", listener.Addr().String(), "mode", s.Profile.Mode)
	if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start echo server")
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shutdown echo server")
	}
	return nil
}
