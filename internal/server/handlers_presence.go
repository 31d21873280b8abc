package server

import (
	"github.com/labstack/echo/v4"
	"github.com/radiolink/radiolink/internal/ratelimit"
)

type presenceRequest struct {
	Username string `json:"username"`
	InGame   *bool  `json:"inGame"`
	HavePass *bool  `json:"havePass"`
}

func (s *Server) handlePresencePublish(c echo.Context) error {
	if ok, err := s.allow(c, ratelimit.ScopePresenceIP, clientIP(c)); !ok {
		return err
	}

	var req presenceRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "bad_request")
	}
	if req.Username == "" {
		return fail(c, 400, "missing_username")
	}
	if req.InGame == nil {
		return fail(c, 400, "missing_inGame")
	}

	havePass := req.HavePass != nil && *req.HavePass
	s.app.UpdatePresence(req.Username, *req.InGame, havePass)
	return c.JSON(200, echo.Map{"ok": true})
}

func (s *Server) handlePresenceGet(c echo.Context) error {
	rec, exists := s.app.Presence.Get(c.Param("username"))
	return c.JSON(200, echo.Map{
		"ok":       true,
		"exists":   exists,
		"inGame":   rec.InGame,
		"havePass": rec.HavePass,
	})
}
