// Package http provides the HTTP server implementation for the coordinator.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coordinator/config"
	"github.com/xiaot623/gogo/coordinator/internal/metrics"
	"github.com/xiaot623/gogo/coordinator/internal/service"
	v1 "github.com/xiaot623/gogo/coordinator/internal/transport/http/v1"
	"github.com/xiaot623/gogo/coordinator/internal/transport/ws"
)

// NewServer creates and configures the coordinator HTTP server: the REST API,
// the Prometheus endpoint and the reviewer feed.
func NewServer(svc *service.Service, feed *ws.Server, cfg *config.Config, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(requestLogger(log.With().Str("component", "http").Logger()))
	e.Use(requestMetrics())
	origin := cfg.CORSAllowOrigin
	if origin == "" {
		origin = "*"
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{origin},
	}))
	if cfg.RateLimitRPS > 0 {
		e.Use(NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware())
	}

	// Handlers
	v1Handler := v1.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	if feed != nil {
		e.GET("/ws", feed.HandleWebSocket)
	}

	return e
}
