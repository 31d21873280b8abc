package server

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/radiolink/radiolink/internal/app"
	"github.com/radiolink/radiolink/internal/pairing"
	"github.com/radiolink/radiolink/internal/ratelimit"
)

type sessionCreateRequest struct {
	Username string `json:"username"`
	HavePass *bool  `json:"havePass"`
}

func (s *Server) handleSessionCreate(c echo.Context) error {
	var req sessionCreateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "bad_request")
	}
	if req.Username == "" {
		return fail(c, 400, "missing_username")
	}

	havePass := req.HavePass != nil && *req.HavePass
	code, exp, err := s.app.IssueCode(req.Username, havePass)
	switch {
	case errors.Is(err, app.ErrNotInGame):
		return fail(c, 403, "not_in_game")
	case errors.Is(err, pairing.ErrCodeGeneration):
		return fail(c, 500, "code_generation_failed")
	case err != nil:
		return fail(c, 500, "code_generation_failed")
	}

	return c.JSON(200, echo.Map{"ok": true, "code": code, "exp": exp})
}

type sessionVerifyRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleSessionVerify(c echo.Context) error {
	if ok, err := s.allow(c, ratelimit.ScopeVerify, clientIP(c)); !ok {
		return err
	}

	var req sessionVerifyRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "bad_request")
	}
	if req.Code == "" {
		return fail(c, 400, "missing_code")
	}

	res, err := s.app.RedeemCode(req.Code)
	switch {
	case errors.Is(err, app.ErrInvalidOrExpired):
		// Business-rule failure, not a transport one: stays 200.
		return fail(c, 200, "invalid_or_expired")
	case errors.Is(err, app.ErrNotInGame):
		return fail(c, 200, "not_in_game")
	case err != nil:
		return fail(c, 200, "invalid_or_expired")
	}

	return c.JSON(200, echo.Map{
		"ok":       true,
		"username": res.Username,
		"havePass": res.HavePass,
		"token":    res.Token,
		"tokenExp": res.TokenExp,
	})
}
