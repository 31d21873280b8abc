package server

import (
	"crypto/subtle"
	"errors"
	"net"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/radiolink/radiolink/internal/metrics"
	"github.com/radiolink/radiolink/internal/presence"
	"github.com/radiolink/radiolink/internal/ratelimit"
	"github.com/radiolink/radiolink/internal/token"
)

// fail writes the standard error envelope.
func fail(c echo.Context, status int, code string) error {
	return c.JSON(status, echo.Map{"ok": false, "error": code})
}

// clientIP returns the first x-forwarded-for element, falling back to the
// peer address.
func clientIP(c echo.Context) string {
	if xff := c.Request().Header.Get("x-forwarded-for"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil {
		return c.Request().RemoteAddr
	}
	return host
}

// allow records a rate-limiter hit. When the quota is exceeded it writes the
// 429 response and returns ok=false with the written error.
func (s *Server) allow(c echo.Context, scope ratelimit.Scope, principal string) (bool, error) {
	if s.app.Limiter.Allow(scope, principal, s.app.NowMs()) {
		return true, nil
	}
	metrics.RateLimitRejections.WithLabelValues(string(scope)).Inc()
	return false, fail(c, 429, "rate_limited")
}

// requireServerKey guards game-server operations with the shared secret. An
// empty configured key fails closed.
func (s *Server) requireServerKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		provided := c.Request().Header.Get("x-roblox-key")
		if s.config.RobloxServerKey == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(s.config.RobloxServerKey)) != 1 {
			return fail(c, 401, "unauthorized")
		}
		return next(c)
	}
}

// extractToken returns the capability token from the x-radio-token header,
// the token query parameter, or the body field, checked in that order.
func extractToken(c echo.Context, bodyToken string) string {
	if t := c.Request().Header.Get("x-radio-token"); t != "" {
		return t
	}
	if t := c.QueryParam("token"); t != "" {
		return t
	}
	return bodyToken
}

// requireToken verifies the capability token and that it names username.
// With no token secret configured every caller is allowed through; that is
// the documented dev-mode policy, decided here and nowhere else. When the
// check fails the response has been written and ok is false.
func (s *Server) requireToken(c echo.Context, bodyToken, username string) (bool, error) {
	raw := extractToken(c, bodyToken)
	claims, err := s.app.Tokens.Verify(raw, s.app.NowMs())

	switch {
	case err == nil:
		metrics.TokenVerifications.WithLabelValues("ok").Inc()
	case errors.Is(err, token.ErrDisabled):
		// No WEB_TOKEN_SECRET: token auth is off and callers pass as the
		// user they claim to be. Only sane for local development.
		metrics.TokenVerifications.WithLabelValues("disabled").Inc()
		return true, nil
	default:
		metrics.TokenVerifications.WithLabelValues(err.Error()).Inc()
		return false, fail(c, 401, err.Error())
	}

	if claims.Username != presence.Normalize(username) {
		return false, fail(c, 403, "token_user_mismatch")
	}
	return true, nil
}
