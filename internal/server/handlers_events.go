package server

import (
	"github.com/labstack/echo/v4"
	"github.com/radiolink/radiolink/internal/metrics"
	"github.com/radiolink/radiolink/internal/presence"
	"github.com/radiolink/radiolink/internal/ratelimit"
)

// handleEvents opens a push subscription. Admission order: per-IP open rate,
// per-user open rate, token check, then the hub's subscriber caps.
func (s *Server) handleEvents(c echo.Context) error {
	username := c.Param("username")
	ip := clientIP(c)

	if ok, err := s.allow(c, ratelimit.ScopeSSEOpenIP, ip); !ok {
		return err
	}
	if ok, err := s.allow(c, ratelimit.ScopeSSEOpenUser, presence.Normalize(username)); !ok {
		return err
	}
	if ok, err := s.requireToken(c, "", username); !ok {
		return err
	}

	sub, err := s.app.Hub.Subscribe(username, ip)
	if err != nil {
		metrics.RateLimitRejections.WithLabelValues("sseCap").Inc()
		return fail(c, 429, "rate_limited")
	}
	defer s.app.Hub.Unsubscribe(sub)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(200)
	res.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case frame, open := <-sub.Frames():
			if !open {
				return nil
			}
			if _, err := res.Write(frame.Encode()); err != nil {
				// Best effort: the transport will close on its own.
				return nil
			}
			res.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}
