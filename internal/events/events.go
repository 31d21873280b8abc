// Package events implements the per-user pull queues behind the radio
// feature. Each user has one ordered queue of tagged events; two audiences
// drain it, each taking only the events addressed to it. Appends coalesce
// duplicate joins and repeated mute states inside short windows.
package events

import (
	"encoding/json"
	"sync"

	"github.com/radiolink/radiolink/internal/presence"
)

// Audience labels which consumer an event is meant for.
type Audience string

const (
	AudienceWeb    Audience = "web"
	AudienceRoblox Audience = "roblox"
)

// Kind is the closed set of event types.
type Kind string

const (
	KindRadioJoin   Kind = "RADIO_JOIN"
	KindRadioMute   Kind = "RADIO_MUTE"
	KindRadioUnmute Kind = "RADIO_UNMUTE"
	KindKick        Kind = "KICK"
)

// Event is the tagged union over the event kinds. Each variant carries only
// its legal fields.
type Event interface {
	EventKind() Kind
	EventAudience() Audience
	Timestamp() int64
}

// JoinEvent tells the game server a browser joined the radio.
type JoinEvent struct {
	Aud Audience
	TS  int64
}

func (e JoinEvent) EventKind() Kind         { return KindRadioJoin }
func (e JoinEvent) EventAudience() Audience { return e.Aud }
func (e JoinEvent) Timestamp() int64        { return e.TS }

func (e JoinEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     Kind     `json:"type"`
		Audience Audience `json:"audience"`
		TS       int64    `json:"ts"`
	}{KindRadioJoin, e.Aud, e.TS})
}

// MuteEvent carries an audio-control change. Its kind depends on the target
// state so consumers can dispatch without inspecting the payload.
type MuteEvent struct {
	Aud   Audience
	TS    int64
	Muted bool
}

func (e MuteEvent) EventKind() Kind {
	if e.Muted {
		return KindRadioMute
	}
	return KindRadioUnmute
}
func (e MuteEvent) EventAudience() Audience { return e.Aud }
func (e MuteEvent) Timestamp() int64        { return e.TS }

func (e MuteEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     Kind     `json:"type"`
		Audience Audience `json:"audience"`
		TS       int64    `json:"ts"`
		Muted    bool     `json:"muted"`
	}{e.EventKind(), e.Aud, e.TS, e.Muted})
}

// KickEvent tells a browser its link was taken over.
type KickEvent struct {
	Aud    Audience
	TS     int64
	Reason string
}

func (e KickEvent) EventKind() Kind         { return KindKick }
func (e KickEvent) EventAudience() Audience { return e.Aud }
func (e KickEvent) Timestamp() int64        { return e.TS }

func (e KickEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     Kind     `json:"type"`
		Audience Audience `json:"audience"`
		TS       int64    `json:"ts"`
		Reason   string   `json:"reason"`
	}{KindKick, e.Aud, e.TS, e.Reason})
}

// Store holds the per-user queues.
type Store struct {
	ttlMs        int64
	joinWindowMs int64
	muteWindowMs int64

	mu     sync.Mutex
	queues map[string][]Event
}

func NewStore(ttlMs, joinWindowMs, muteWindowMs int64) *Store {
	return &Store{
		ttlMs:        ttlMs,
		joinWindowMs: joinWindowMs,
		muteWindowMs: muteWindowMs,
		queues:       make(map[string][]Event),
	}
}

// Append adds ev to username's queue, unless coalescing suppresses it.
// It reports whether the event was actually stored.
func (s *Store) Append(username string, ev Event) bool {
	key := presence.Normalize(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[key]
	if len(q) > 0 && s.coalesces(q[len(q)-1], ev) {
		return false
	}
	s.queues[key] = append(q, ev)
	return true
}

// coalesces reports whether appending next after last would be a duplicate
// inside the relevant dedup window.
func (s *Store) coalesces(last, next Event) bool {
	switch n := next.(type) {
	case JoinEvent:
		if _, ok := last.(JoinEvent); ok {
			return n.TS-last.Timestamp() < s.joinWindowMs
		}
	case MuteEvent:
		if l, ok := last.(MuteEvent); ok && l.Muted == n.Muted {
			return n.TS-l.TS < s.muteWindowMs
		}
	}
	return false
}

// DrainWeb removes and returns username's events addressed to the browser,
// preserving append order. Events for other audiences stay queued. Expired
// events are discarded on the way.
func (s *Store) DrainWeb(username string, nowMs int64) []Event {
	return s.drain(username, nowMs, func(a Audience) bool { return a == AudienceWeb })
}

// DrainRoblox removes and returns username's events addressed to the game
// server. An unset audience counts as roblox for compatibility with older
// producers.
func (s *Store) DrainRoblox(username string, nowMs int64) []Event {
	return s.drain(username, nowMs, func(a Audience) bool { return a == AudienceRoblox || a == "" })
}

func (s *Store) drain(username string, nowMs int64, match func(Audience) bool) []Event {
	key := presence.Normalize(username)
	cutoff := nowMs - s.ttlMs

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[key]
	if !ok {
		return nil
	}

	var drained, kept []Event
	for _, ev := range q {
		if ev.Timestamp() < cutoff {
			continue
		}
		if match(ev.EventAudience()) {
			drained = append(drained, ev)
		} else {
			kept = append(kept, ev)
		}
	}

	if len(kept) == 0 {
		delete(s.queues, key)
	} else {
		s.queues[key] = kept
	}
	return drained
}

// Sweep drops events older than the TTL from every queue and removes queues
// that become empty. Returns the number of events dropped.
func (s *Store) Sweep(nowMs int64) int {
	cutoff := nowMs - s.ttlMs

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, q := range s.queues {
		kept := q[:0]
		for _, ev := range q {
			if ev.Timestamp() >= cutoff {
				kept = append(kept, ev)
			} else {
				dropped++
			}
		}
		if len(kept) == 0 {
			delete(s.queues, key)
		} else {
			s.queues[key] = kept
		}
	}
	return dropped
}

// QueueLen returns the current queue length for username.
func (s *Store) QueueLen(username string) int {
	key := presence.Normalize(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[key])
}
