// Package hub fans radio events out to open push (SSE) subscriptions. A
// single goroutine owns all subscriber state and is driven by a command
// channel; delivery to each subscriber goes through a bounded channel with
// drop-on-overflow so one slow consumer never stalls the hub.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/radiolink/radiolink/internal/metrics"
	"github.com/radiolink/radiolink/internal/presence"
)

const subscriberBuffer = 16

// Admission failures. Both map to 429 at the transport.
var (
	ErrUserLimit = errors.New("too many subscribers for user")
	ErrIPLimit   = errors.New("too many subscribers for ip")
)

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  []byte
}

// Encode renders the frame in wire format: "event: <name>\ndata: <json>\n\n".
func (f Frame) Encode() []byte {
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", f.Event, f.Data))
}

// JSONFrame builds a frame with a JSON-encoded payload.
func JSONFrame(event string, payload any) Frame {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Frame{Event: event, Data: data}
}

// Subscriber is one open push subscription. The transport goroutine reads
// Frames() and writes each frame to the client; the channel is closed when
// the hub removes the subscriber.
type Subscriber struct {
	id       uuid.UUID
	username string
	ip       string
	ch       chan Frame
}

func (s *Subscriber) Frames() <-chan Frame { return s.ch }
func (s *Subscriber) Username() string     { return s.username }

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdSubscribe struct {
	username string
	ip       string
	replyCh  chan subscribeResult
}

func (cmdSubscribe) hubCmd() {}

type subscribeResult struct {
	sub *Subscriber
	err error
}

type cmdUnsubscribe struct {
	sub *Subscriber
}

func (cmdUnsubscribe) hubCmd() {}

type cmdPublish struct {
	username string
	frame    Frame
	replyCh  chan int
}

func (cmdPublish) hubCmd() {}

type cmdCounts struct {
	username string
	ip       string
	replyCh  chan counts
}

func (cmdCounts) hubCmd() {}

type counts struct {
	user int
	ip   int
}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Hub ---

type Hub struct {
	cmdCh       chan hubCmd
	clock       clockwork.Clock
	heartbeat   time.Duration
	maxPerUser  int
	maxPerIP    int
	subscribers map[string]map[uuid.UUID]*Subscriber
	ipCounts    map[string]int
}

func New(clock clockwork.Clock, heartbeat time.Duration, maxPerUser, maxPerIP int) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, 256),
		clock:       clock,
		heartbeat:   heartbeat,
		maxPerUser:  maxPerUser,
		maxPerIP:    maxPerIP,
		subscribers: make(map[string]map[uuid.UUID]*Subscriber),
		ipCounts:    make(map[string]int),
	}
	go h.run()
	return h
}

// Subscribe admits a new subscription for username from ip, enforcing the
// per-user and per-IP caps. On success the subscriber already has a hello
// frame queued.
func (h *Hub) Subscribe(username, ip string) (*Subscriber, error) {
	replyCh := make(chan subscribeResult, 1)
	h.cmdCh <- cmdSubscribe{username: presence.Normalize(username), ip: ip, replyCh: replyCh}
	res := <-replyCh
	return res.sub, res.err
}

// Unsubscribe removes the subscription and releases its per-IP slot. The
// subscriber's frame channel is closed by the hub.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.cmdCh <- cmdUnsubscribe{sub: sub}
}

// Publish sends the frame to every subscriber for username, best effort.
// Returns the number of subscribers the frame was queued for.
func (h *Hub) Publish(username string, frame Frame) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdPublish{username: presence.Normalize(username), frame: frame, replyCh: replyCh}
	return <-replyCh
}

// UserCount returns the number of open subscriptions for username.
func (h *Hub) UserCount(username string) int {
	replyCh := make(chan counts, 1)
	h.cmdCh <- cmdCounts{username: presence.Normalize(username), replyCh: replyCh}
	return (<-replyCh).user
}

// IPCount returns the number of open subscriptions from ip.
func (h *Hub) IPCount(ip string) int {
	replyCh := make(chan counts, 1)
	h.cmdCh <- cmdCounts{ip: ip, replyCh: replyCh}
	return (<-replyCh).ip
}

// Stop shuts the hub down, closing every subscriber channel.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}

func (h *Hub) run() {
	ticker := h.clock.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case cmdSubscribe:
				h.handleSubscribe(c)
			case cmdUnsubscribe:
				h.handleUnsubscribe(c.sub)
			case cmdPublish:
				c.replyCh <- h.handlePublish(c.username, c.frame)
			case cmdCounts:
				c.replyCh <- counts{user: len(h.subscribers[c.username]), ip: h.ipCounts[c.ip]}
			case cmdStop:
				h.handleStop()
				return
			}
		case <-ticker.Chan():
			h.handleHeartbeat()
		}
	}
}

func (h *Hub) handleSubscribe(c cmdSubscribe) {
	if len(h.subscribers[c.username]) >= h.maxPerUser {
		c.replyCh <- subscribeResult{err: ErrUserLimit}
		return
	}
	if h.ipCounts[c.ip] >= h.maxPerIP {
		c.replyCh <- subscribeResult{err: ErrIPLimit}
		return
	}

	sub := &Subscriber{
		id:       uuid.New(),
		username: c.username,
		ip:       c.ip,
		ch:       make(chan Frame, subscriberBuffer),
	}
	subs, ok := h.subscribers[c.username]
	if !ok {
		subs = make(map[uuid.UUID]*Subscriber)
		h.subscribers[c.username] = subs
	}
	subs[sub.id] = sub
	h.ipCounts[c.ip]++
	metrics.PushSubscribers.Inc()

	sub.ch <- JSONFrame("hello", map[string]any{"ok": true, "username": c.username})
	slog.Debug("push subscriber admitted", "username", c.username, "total", len(subs))
	c.replyCh <- subscribeResult{sub: sub}
}

func (h *Hub) handleUnsubscribe(sub *Subscriber) {
	subs, ok := h.subscribers[sub.username]
	if !ok {
		return
	}
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.subscribers, sub.username)
	}
	if n := h.ipCounts[sub.ip]; n > 1 {
		h.ipCounts[sub.ip] = n - 1
	} else {
		delete(h.ipCounts, sub.ip)
	}
	metrics.PushSubscribers.Dec()
	close(sub.ch)
}

func (h *Hub) handlePublish(username string, frame Frame) int {
	delivered := 0
	for _, sub := range h.subscribers[username] {
		select {
		case sub.ch <- frame:
			delivered++
		default:
			metrics.PushFramesDropped.Inc()
		}
	}
	return delivered
}

func (h *Hub) handleHeartbeat() {
	frame := JSONFrame("ping", map[string]any{"ts": h.clock.Now().UnixMilli()})
	for _, subs := range h.subscribers {
		for _, sub := range subs {
			select {
			case sub.ch <- frame:
			default:
				metrics.PushFramesDropped.Inc()
			}
		}
	}
}

func (h *Hub) handleStop() {
	for username, subs := range h.subscribers {
		for id, sub := range subs {
			delete(subs, id)
			metrics.PushSubscribers.Dec()
			close(sub.ch)
		}
		delete(h.subscribers, username)
	}
	h.ipCounts = make(map[string]int)
}
