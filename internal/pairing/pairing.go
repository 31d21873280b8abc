// Package pairing holds the one-shot pairing codes a game server hands to a
// user so their browser can claim a capability token. At most one live code
// exists per user; issuing a new one pre-empts the old.
package pairing

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"

	"github.com/radiolink/radiolink/internal/presence"
)

// codeAlphabet omits 0/O/1/I so codes survive being read aloud or retyped.
// 32 symbols keeps the modulo mapping from random bytes uniform.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 7
	maxAttempts  = 12
)

var ErrCodeGeneration = errors.New("code_generation_failed")

// Record is a live pairing code awaiting redemption.
type Record struct {
	Username string
	HavePass bool
	Exp      int64
}

type Registry struct {
	ttlMs int64

	mu     sync.Mutex
	codes  map[string]Record
	byUser map[string]string
}

func NewRegistry(ttlMs int64) *Registry {
	return &Registry{
		ttlMs:  ttlMs,
		codes:  make(map[string]Record),
		byUser: make(map[string]string),
	}
}

// Issue creates a fresh code for username, replacing any existing one.
// It fails with ErrCodeGeneration if every generation attempt collides.
func (r *Registry) Issue(username string, havePass bool, nowMs int64) (string, int64, error) {
	user := presence.Normalize(username)
	exp := nowMs + r.ttlMs

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[user]; ok {
		delete(r.codes, old)
		delete(r.byUser, user)
	}

	for range maxAttempts {
		code, err := generateCode()
		if err != nil {
			return "", 0, ErrCodeGeneration
		}
		if _, taken := r.codes[code]; taken {
			continue
		}
		r.codes[code] = Record{Username: user, HavePass: havePass, Exp: exp}
		r.byUser[user] = code
		return code, exp, nil
	}
	return "", 0, ErrCodeGeneration
}

// Redeem looks up and atomically deletes the code. The record is removed even
// when the caller's follow-up checks fail; a code is spent on first use.
func (r *Registry) Redeem(code string, nowMs int64) (Record, bool) {
	key := NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.codes[key]
	if !ok {
		return Record{}, false
	}
	delete(r.codes, key)
	if r.byUser[rec.Username] == key {
		delete(r.byUser, rec.Username)
	}
	if rec.Exp <= nowMs {
		return Record{}, false
	}
	return rec, true
}

// CodeFor returns the live code for username, if any. Expired entries are
// reported as absent.
func (r *Registry) CodeFor(username string, nowMs int64) (string, bool) {
	user := presence.Normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.byUser[user]
	if !ok {
		return "", false
	}
	if rec, live := r.codes[code]; !live || rec.Exp <= nowMs {
		return "", false
	}
	return code, true
}

// Sweep removes expired codes from both indexes. Returns the number removed.
func (r *Registry) Sweep(nowMs int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for code, rec := range r.codes {
		if rec.Exp <= nowMs {
			delete(r.codes, code)
			if r.byUser[rec.Username] == code {
				delete(r.byUser, rec.Username)
			}
			removed++
		}
	}
	return removed
}

// Len returns the number of stored codes, expired or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

// NormalizeCode uppercases and trims a code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
