// Package server assembles the echo application
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/samuelblakek/invoice-automation/config"
	"github.com/samuelblakek/invoice-automation/pkg/middleware"
	"github.com/samuelblakek/invoice-automation/pkg/routes/batch"
	"github.com/samuelblakek/invoice-automation/pkg/routes/health"
	"github.com/samuelblakek/invoice-automation/pkg/routes/nominalcode"
	"github.com/samuelblakek/invoice-automation/pkg/routes/reconcile"
	"github.com/samuelblakek/invoice-automation/pkg/routes/runs"
	"github.com/samuelblakek/invoice-automation/pkg/routes/settlement"
)

// Handlers collects the route handlers the server mounts. Nil handlers
// are skipped so the server can run without a database.
type Handlers struct {
	Health      *health.Checker
	Reconcile   *reconcile.Handler
	Settlement  *settlement.Handler
	Batch       *batch.Handler
	Runs        *runs.Handler
	NominalCode *nominalcode.Handler
}

// Server wraps the echo instance
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger ectologger.Logger
}

// New builds the echo application with middleware and routes mounted
func New(cfg *config.Config, handlers Handlers, logger ectologger.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if handlers.Health != nil {
		handlers.Health.RegisterRoutes(e)
	}

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		auth, err := middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return nil, fmt.Errorf("configure authentication: %w", err)
		}
		api.Use(auth)
	}

	if handlers.Reconcile != nil {
		handlers.Reconcile.RegisterRoutes(api.Group("/reconcile"))
	}
	if handlers.Settlement != nil {
		handlers.Settlement.RegisterRoutes(api.Group("/settlements"))
	}
	if handlers.Batch != nil {
		handlers.Batch.RegisterRoutes(api)
	}
	if handlers.Runs != nil {
		handlers.Runs.RegisterRoutes(api)
	}
	if handlers.NominalCode != nil {
		handlers.NominalCode.RegisterRoutes(api.Group("/nominal-codes"))
	}

	return &Server{echo: e, cfg: cfg, logger: logger}, nil
}

// Echo exposes the underlying echo instance for tests
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start begins serving and blocks until the listener stops
func (s *Server) Start() error {
	s.echo.Server.ReadTimeout = time.Duration(s.cfg.HttpServerReadTimeoutSeconds) * time.Second
	s.echo.Server.WriteTimeout = time.Duration(s.cfg.HttpServerWriteTimeoutSeconds) * time.Second
	s.echo.Server.IdleTimeout = time.Duration(s.cfg.HttpServerIdleTimeoutSeconds) * time.Second

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Infof("Listening on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
