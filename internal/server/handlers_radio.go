package server

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/radiolink/radiolink/internal/app"
	"github.com/radiolink/radiolink/internal/events"
	"github.com/radiolink/radiolink/internal/radio"
	"github.com/radiolink/radiolink/internal/ratelimit"
)

type radioJoinRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (s *Server) handleRadioJoin(c echo.Context) error {
	if ok, err := s.allow(c, ratelimit.ScopeJoinIP, clientIP(c)); !ok {
		return err
	}

	var req radioJoinRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "bad_request")
	}
	if req.Username == "" {
		return fail(c, 400, "missing_username")
	}
	if ok, err := s.requireToken(c, req.Token, req.Username); !ok {
		return err
	}

	ignored, err := s.app.Join(req.Username)
	if errors.Is(err, app.ErrNotInGame) {
		return fail(c, 403, "not_in_game")
	}
	if ignored {
		return c.JSON(200, echo.Map{"ok": true, "ignored": true})
	}
	return c.JSON(200, echo.Map{"ok": true})
}

type radioMuteRequest struct {
	Username string `json:"username"`
	Muted    *bool  `json:"muted"`
	Token    string `json:"token"`
}

func (s *Server) handleRadioMute(c echo.Context) error {
	var req radioMuteRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "bad_request")
	}
	if ok, err := s.allow(c, ratelimit.ScopeMuteIP, clientIP(c)); !ok {
		return err
	}
	if req.Username == "" {
		return fail(c, 400, "missing_username")
	}
	if req.Muted == nil {
		return fail(c, 400, "missing_muted")
	}
	if ok, err := s.requireToken(c, req.Token, req.Username); !ok {
		return err
	}
	return s.applyMute(c, req.Username, *req.Muted)
}

// handleRadioMuteServer is the game-server variant: shared-key auth instead
// of a capability token, same semantics otherwise.
func (s *Server) handleRadioMuteServer(c echo.Context) error {
	var req radioMuteRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "bad_request")
	}
	if ok, err := s.allow(c, ratelimit.ScopeMuteIP, clientIP(c)); !ok {
		return err
	}
	if req.Username == "" {
		return fail(c, 400, "missing_username")
	}
	if req.Muted == nil {
		return fail(c, 400, "missing_muted")
	}
	return s.applyMute(c, req.Username, *req.Muted)
}

func (s *Server) applyMute(c echo.Context, username string, muted bool) error {
	pushed, ignored, err := s.app.SetMuted(username, muted)
	if errors.Is(err, app.ErrNotInGame) {
		return fail(c, 403, "not_in_game")
	}
	if ignored {
		return c.JSON(200, echo.Map{"ok": true, "ignored": true})
	}
	return c.JSON(200, echo.Map{"ok": true, "pushed": pushed})
}

func (s *Server) handleRadioSync(c echo.Context) error {
	if ok, err := s.allow(c, ratelimit.ScopeSyncIP, clientIP(c)); !ok {
		return err
	}
	username := c.Param("username")
	if ok, err := s.requireToken(c, "", username); !ok {
		return err
	}
	return c.JSON(200, echo.Map{"ok": true, "events": eventList(s.app.SyncWeb(username))})
}

func (s *Server) handleRadioPoll(c echo.Context) error {
	if ok, err := s.allow(c, ratelimit.ScopePollIP, clientIP(c)); !ok {
		return err
	}
	username := c.Param("username")
	return c.JSON(200, echo.Map{"ok": true, "events": eventList(s.app.PollRoblox(username))})
}

type radioStateRequest struct {
	Username    string   `json:"username"`
	TrackIndex  *int     `json:"trackIndex"`
	TrackName   *string  `json:"trackName"`
	PositionSec *float64 `json:"positionSec"`
	IsPlaying   *bool    `json:"isPlaying"`
	Muted       *bool    `json:"muted"`
	Token       string   `json:"token"`
}

func (s *Server) handleRadioState(c echo.Context) error {
	if ok, err := s.allow(c, ratelimit.ScopeStateIP, clientIP(c)); !ok {
		return err
	}

	var req radioStateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "bad_request")
	}
	if req.Username == "" {
		return fail(c, 400, "missing_username")
	}
	if ok, err := s.requireToken(c, req.Token, req.Username); !ok {
		return err
	}

	ignored, err := s.app.UpdateRadioState(req.Username, radio.Update{
		TrackIndex: req.TrackIndex,
		TrackName:  req.TrackName,
		PositionAt: req.PositionSec,
		IsPlaying:  req.IsPlaying,
		Muted:      req.Muted,
	})
	if errors.Is(err, app.ErrNotInGame) {
		return fail(c, 403, "not_in_game")
	}
	if ignored {
		return c.JSON(200, echo.Map{"ok": true, "ignored": true})
	}
	return c.JSON(200, echo.Map{"ok": true})
}

func (s *Server) handleRadioActive(c echo.Context) error {
	if ok, err := s.allow(c, ratelimit.ScopeActiveIP, clientIP(c)); !ok {
		return err
	}
	listeners := s.app.ActiveListeners()
	if listeners == nil {
		listeners = []radio.Listener{}
	}
	return c.JSON(200, echo.Map{"ok": true, "listeners": listeners})
}

// eventList keeps empty drains marshaling as [] instead of null.
func eventList(evs []events.Event) []events.Event {
	if evs == nil {
		return []events.Event{}
	}
	return evs
}
