// Package presence tracks the game server's assertions about which users are
// currently inside a session. Records have no TTL; they are overwritten by
// each publication and consulted as a precondition by most write paths.
package presence

import (
	"strings"
	"sync"
)

// Record is the last presence report for a user.
type Record struct {
	InGame    bool
	HavePass  bool
	UpdatedAt int64
}

type Registry struct {
	mu sync.RWMutex
	m  map[string]Record
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Record)}
}

// Set creates or overwrites the presence record for username.
func (r *Registry) Set(username string, inGame, havePass bool, nowMs int64) {
	key := Normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[key] = Record{InGame: inGame, HavePass: havePass, UpdatedAt: nowMs}
}

// Get returns the record for username and whether one exists.
func (r *Registry) Get(username string) (Record, bool) {
	key := Normalize(username)
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.m[key]
	return rec, ok
}

// InGame reports whether the user has a record marking them in-game.
func (r *Registry) InGame(username string) bool {
	rec, ok := r.Get(username)
	return ok && rec.InGame
}

// Normalize lowercases and trims a username for use as a map key.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
