// Package app owns the service's shared state: every core store plus the
// push hub, packaged as one value passed to the transport layer. The two
// operations that span stores, IssueCode and RedeemCode, are serialized by a
// service-level mutex so they appear atomic to each other.
package app

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/radiolink/radiolink/internal/config"
	"github.com/radiolink/radiolink/internal/events"
	"github.com/radiolink/radiolink/internal/hub"
	"github.com/radiolink/radiolink/internal/metrics"
	"github.com/radiolink/radiolink/internal/pairing"
	"github.com/radiolink/radiolink/internal/presence"
	"github.com/radiolink/radiolink/internal/radio"
	"github.com/radiolink/radiolink/internal/ratelimit"
	"github.com/radiolink/radiolink/internal/token"
)

// TTL and throttle defaults, in milliseconds unless noted.
const (
	SessionTTLMs      = 120_000
	RadioTTLMs        = 300_000
	StateTTLMs        = 25_000
	StateMinGapMs     = 700
	WebTokenTTLMs     = 600_000
	JoinDedupWindowMs = 10_000
	MuteDedupWindowMs = 1_500
	PushHeartbeat     = 20 * time.Second
)

// Business-rule failures surfaced as API error codes.
var (
	ErrNotInGame        = errors.New("not_in_game")
	ErrInvalidOrExpired = errors.New("invalid_or_expired")
)

// Service is the process-wide state value.
type Service struct {
	clock clockwork.Clock

	Presence *presence.Registry
	Pairing  *pairing.Registry
	Tokens   *token.Authority
	Events   *events.Store
	Radio    *radio.Table
	Hub      *hub.Hub
	Limiter  *ratelimit.Limiter

	// sessionMu serializes IssueCode and RedeemCode so each appears atomic
	// with respect to the other across the stores they touch.
	sessionMu sync.Mutex

	sched *scheduler
}

func NewService(cfg *config.Config, clock clockwork.Clock) *Service {
	s := &Service{
		clock:    clock,
		Presence: presence.NewRegistry(),
		Pairing:  pairing.NewRegistry(SessionTTLMs),
		Tokens:   token.NewAuthority(cfg.WebTokenSecret, WebTokenTTLMs),
		Events:   events.NewStore(RadioTTLMs, JoinDedupWindowMs, MuteDedupWindowMs),
		Radio:    radio.NewTable(StateMinGapMs, StateTTLMs),
		Hub:      hub.New(clock, PushHeartbeat, cfg.MaxSSEPerUser, cfg.MaxSSEPerIP),
		Limiter:  ratelimit.NewLimiter(ratelimit.DefaultRules()),
	}
	s.sched = newScheduler(s, clock)
	return s
}

// Start launches the background GC tasks.
func (s *Service) Start() {
	s.sched.start()
}

// Stop halts the GC tasks and shuts down the push hub.
func (s *Service) Stop() {
	s.sched.stop()
	s.Hub.Stop()
}

// NowMs returns the injected clock's wall time in milliseconds.
func (s *Service) NowMs() int64 {
	return s.clock.Now().UnixMilli()
}

// UpdatePresence records a presence report for username.
func (s *Service) UpdatePresence(username string, inGame, havePass bool) {
	s.Presence.Set(username, inGame, havePass, s.NowMs())
}

// IssueCode mints a fresh pairing code for an in-game user. Issuing revokes
// every outstanding token for the user, drops their radio snapshot and kicks
// any open push subscription, so exactly one device owns the link at a time.
func (s *Service) IssueCode(username string, havePass bool) (string, int64, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if !s.Presence.InGame(username) {
		return "", 0, ErrNotInGame
	}

	now := s.NowMs()
	s.Tokens.Revoke(username, now)
	s.Radio.Remove(username)
	s.Hub.Publish(username, hub.JSONFrame("kick", map[string]any{
		"type":   string(events.KindKick),
		"reason": "new_code",
		"ts":     now,
	}))

	code, exp, err := s.Pairing.Issue(username, havePass, now)
	if err != nil {
		return "", 0, err
	}
	metrics.PairingCodesIssued.Inc()
	return code, exp, nil
}

// RedeemResult is the outcome of a successful code redemption.
type RedeemResult struct {
	Username string
	HavePass bool
	Token    string
	TokenExp int64
}

// RedeemCode spends a pairing code and mints a capability token. The code is
// deleted even when the in-game check fails; a code is good for one attempt.
// With no token secret configured the result carries an empty token.
func (s *Service) RedeemCode(code string) (RedeemResult, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	now := s.NowMs()
	rec, ok := s.Pairing.Redeem(code, now)
	if !ok {
		return RedeemResult{}, ErrInvalidOrExpired
	}
	if !s.Presence.InGame(rec.Username) {
		return RedeemResult{}, ErrNotInGame
	}

	tok, exp := s.Tokens.Mint(rec.Username, now)
	metrics.PairingCodesRedeemed.Inc()
	return RedeemResult{
		Username: rec.Username,
		HavePass: rec.HavePass,
		Token:    tok,
		TokenExp: exp,
	}, nil
}

// Join records that username's browser joined the radio, for the game server
// to pick up on its next poll. Returns true when the join was coalesced away.
func (s *Service) Join(username string) (ignored bool, err error) {
	if !s.Presence.InGame(username) {
		return false, ErrNotInGame
	}
	stored := s.Events.Append(username, events.JoinEvent{
		Aud: events.AudienceRoblox,
		TS:  s.NowMs(),
	})
	if !stored {
		metrics.EventsCoalesced.Inc()
		return true, nil
	}
	metrics.EventsAppended.WithLabelValues(string(events.KindRadioJoin)).Inc()
	return false, nil
}

// SetMuted records an audio-control change for username. The event goes out
// on the push channel and is also appended to the browser pull queue, so a
// momentarily absent subscriber still learns the current state on its next
// sync. Returns pushed=true when at least one live subscriber got the frame.
func (s *Service) SetMuted(username string, muted bool) (pushed, ignored bool, err error) {
	if !s.Presence.InGame(username) {
		return false, false, ErrNotInGame
	}

	now := s.NowMs()
	ev := events.MuteEvent{Aud: events.AudienceWeb, TS: now, Muted: muted}
	if !s.Events.Append(username, ev) {
		metrics.EventsCoalesced.Inc()
		return false, true, nil
	}
	metrics.EventsAppended.WithLabelValues(string(ev.EventKind())).Inc()

	delivered := s.Hub.Publish(username, hub.JSONFrame("radio", ev))
	return delivered > 0, false, nil
}

// SyncWeb drains username's browser-audience events.
func (s *Service) SyncWeb(username string) []events.Event {
	return s.Events.DrainWeb(username, s.NowMs())
}

// PollRoblox drains username's game-server-audience events.
func (s *Service) PollRoblox(username string) []events.Event {
	return s.Events.DrainRoblox(username, s.NowMs())
}

// UpdateRadioState applies a partial playback-state write for an in-game
// user. Returns true when the write was throttled by the minimum update gap.
func (s *Service) UpdateRadioState(username string, upd radio.Update) (ignored bool, err error) {
	if !s.Presence.InGame(username) {
		return false, ErrNotInGame
	}
	return !s.Radio.Update(username, upd, s.NowMs()), nil
}

// ActiveListeners returns the currently-listening view, freshest writer first.
func (s *Service) ActiveListeners() []radio.Listener {
	return s.Radio.Active(s.NowMs(), s.Presence.InGame)
}
