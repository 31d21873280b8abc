// Package ratelimit implements fixed-window request counters keyed by
// (scope, principal), where a principal is an IP, a username, or a composite.
package ratelimit

import "sync"

// Scope names one rate-limited surface.
type Scope string

const (
	ScopeVerify      Scope = "verify"
	ScopeSSEOpenIP   Scope = "sseOpenIp"
	ScopeSSEOpenUser Scope = "sseOpenUser"
	ScopeJoinIP      Scope = "joinIp"
	ScopeMuteIP      Scope = "muteIp"
	ScopeSyncIP      Scope = "syncIp"
	ScopeStateIP     Scope = "stateIp"
	ScopeActiveIP    Scope = "activeIp"
	ScopePollIP      Scope = "pollIp"
	ScopePresenceIP  Scope = "presenceIp"
)

// Rule is the quota for one scope.
type Rule struct {
	WindowMs int64
	Max      int
}

// DefaultRules returns the per-scope quotas.
func DefaultRules() map[Scope]Rule {
	return map[Scope]Rule{
		ScopeVerify:      {WindowMs: 15_000, Max: 12},
		ScopeSSEOpenIP:   {WindowMs: 60_000, Max: 60},
		ScopeSSEOpenUser: {WindowMs: 60_000, Max: 60},
		ScopeJoinIP:      {WindowMs: 10_000, Max: 25},
		ScopeMuteIP:      {WindowMs: 10_000, Max: 25},
		ScopeSyncIP:      {WindowMs: 10_000, Max: 40},
		ScopeStateIP:     {WindowMs: 10_000, Max: 80},
		ScopeActiveIP:    {WindowMs: 10_000, Max: 40},
		ScopePollIP:      {WindowMs: 10_000, Max: 80},
		ScopePresenceIP:  {WindowMs: 10_000, Max: 200},
	}
}

// sweepBatchLimit caps deletions per sweep pass to bound pause time.
const sweepBatchLimit = 5000

type key struct {
	scope     Scope
	principal string
}

type counter struct {
	count   int
	resetAt int64
}

type Limiter struct {
	rules map[Scope]Rule

	mu       sync.Mutex
	counters map[key]*counter
}

func NewLimiter(rules map[Scope]Rule) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Limiter{
		rules:    rules,
		counters: make(map[key]*counter),
	}
}

// Allow records a hit for (scope, principal) and reports whether it fits
// inside the scope's quota. Scopes without a rule are not limited.
func (l *Limiter) Allow(scope Scope, principal string, nowMs int64) bool {
	rule, ok := l.rules[scope]
	if !ok {
		return true
	}

	k := key{scope: scope, principal: principal}
	l.mu.Lock()
	defer l.mu.Unlock()

	c, exists := l.counters[k]
	if !exists || c.resetAt <= nowMs {
		l.counters[k] = &counter{count: 1, resetAt: nowMs + rule.WindowMs}
		return true
	}
	c.count++
	return c.count <= rule.Max
}

// Sweep evicts counters whose window has passed, deleting at most
// sweepBatchLimit entries per call. Returns the number removed.
func (l *Limiter) Sweep(nowMs int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, c := range l.counters {
		if c.resetAt <= nowMs {
			delete(l.counters, k)
			removed++
			if removed >= sweepBatchLimit {
				break
			}
		}
	}
	return removed
}

// Size returns the number of live counters.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
