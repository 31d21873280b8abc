package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.String(200, "radiolink coordination service")
	})
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, echo.Map{"ok": true})
	})
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Presence reports from game servers (unauthenticated by design; the
	// shared key only guards operations that mint or drain).
	s.echo.POST("/presence", s.handlePresencePublish)
	s.echo.GET("/presence/:username", s.handlePresenceGet)

	// Pairing.
	s.echo.POST("/session/create", s.handleSessionCreate, s.requireServerKey)
	s.echo.POST("/session/verify", s.handleSessionVerify)

	// Push channel.
	s.echo.GET("/events/:username", s.handleEvents)

	// Radio.
	s.echo.POST("/radio/join", s.handleRadioJoin)
	s.echo.POST("/radio/mute", s.handleRadioMute)
	s.echo.POST("/radio/mute/server", s.handleRadioMuteServer, s.requireServerKey)
	s.echo.GET("/radio/sync/:username", s.handleRadioSync)
	s.echo.GET("/radio/poll/:username", s.handleRadioPoll, s.requireServerKey)
	s.echo.POST("/radio/state", s.handleRadioState)
	s.echo.GET("/radio/active", s.handleRadioActive)
}
