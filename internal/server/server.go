// Package server is the HTTP transport: routing, auth preconditions, rate
// limiting and the SSE bridge onto the push hub. All domain behavior lives in
// the app service; handlers translate between JSON envelopes and app calls.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/radiolink/radiolink/internal/app"
	"github.com/radiolink/radiolink/internal/config"
	"github.com/radiolink/radiolink/internal/correlation"
)

type Server struct {
	echo   *echo.Echo
	config *config.Config
	app    *app.Service
}

func NewServer(cfg *config.Config, appSvc *app.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(correlationMiddleware)
	e.Use(corsMiddleware(cfg.AllowedOrigins))

	srv := &Server{
		echo:   e,
		config: cfg,
		app:    appSvc,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for httptest-based tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// correlationMiddleware tags every request with a short ID that the slog
// handler injects into each log line.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.NewID()
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set("X-Request-Id", id)
		return next(c)
	}
}

// corsMiddleware allows any origin when the allowlist is empty, otherwise
// echoes the origin only when it matches.
func corsMiddleware(allowedOrigins []string) echo.MiddlewareFunc {
	origins := allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, "x-roblox-key", "x-radio-token"},
		MaxAge:       86400,
	})
}
