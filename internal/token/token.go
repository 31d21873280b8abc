// Package token implements the self-contained capability tokens handed to
// browser clients after pairing. A token is payload.signature where payload is
// the URL-safe base64 of a JSON claims record and signature is the URL-safe
// base64 of HMAC-SHA256(secret, payload). Revocation is per user: advancing a
// user's revocation epoch invalidates every token issued before it, without a
// server-side token table.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// Verification failure kinds. The strings are surfaced verbatim as API error
// codes, so they form a closed set.
var (
	ErrDisabled     = errors.New("token_disabled")
	ErrMissing      = errors.New("missing_token")
	ErrBadFormat    = errors.New("bad_token_format")
	ErrBadSignature = errors.New("bad_signature")
	ErrBadPayload   = errors.New("bad_payload")
	ErrExpired      = errors.New("token_expired")
	ErrRevoked      = errors.New("token_revoked")
)

// Claims is the signed token payload.
type Claims struct {
	Username  string `json:"username"`
	IssuedAt  int64  `json:"issuedAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Authority mints and verifies tokens and owns the per-user revocation epochs.
type Authority struct {
	secret []byte
	ttlMs  int64

	mu        sync.Mutex
	revokedAt map[string]int64
}

func NewAuthority(secret string, ttlMs int64) *Authority {
	a := &Authority{
		ttlMs:     ttlMs,
		revokedAt: make(map[string]int64),
	}
	if secret != "" {
		a.secret = []byte(secret)
	}
	return a
}

// Enabled reports whether a signing secret is configured. When it is not,
// Mint returns empty tokens and Verify fails with ErrDisabled; callers decide
// explicitly whether to treat that as open access (dev mode).
func (a *Authority) Enabled() bool {
	return len(a.secret) > 0
}

// TTLMs returns the configured token lifetime in milliseconds.
func (a *Authority) TTLMs() int64 {
	return a.ttlMs
}

// Mint issues a token for the given lowercased username. It returns the token
// and its expiry, or ("", 0) when no secret is configured.
func (a *Authority) Mint(username string, nowMs int64) (string, int64) {
	if !a.Enabled() {
		return "", 0
	}
	claims := Claims{
		Username:  strings.ToLower(strings.TrimSpace(username)),
		IssuedAt:  nowMs,
		ExpiresAt: nowMs + a.ttlMs,
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", 0
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + a.sign(payload), claims.ExpiresAt
}

// Verify checks format, signature, expiry and the user's revocation epoch, in
// that order. It never consults a per-token store.
func (a *Authority) Verify(token string, nowMs int64) (Claims, error) {
	if !a.Enabled() {
		return Claims{}, ErrDisabled
	}
	if token == "" {
		return Claims{}, ErrMissing
	}

	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" {
		return Claims{}, ErrBadFormat
	}

	expected := a.sign(payload)
	if len(sig) != len(expected) || !hmac.Equal([]byte(sig), []byte(expected)) {
		return Claims{}, ErrBadSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrBadPayload
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil || claims.Username == "" {
		return Claims{}, ErrBadPayload
	}

	if claims.ExpiresAt <= nowMs {
		return Claims{}, ErrExpired
	}
	if claims.IssuedAt < a.RevokedAt(claims.Username) {
		return Claims{}, ErrRevoked
	}
	return claims, nil
}

// Revoke advances the user's revocation epoch to nowMs. Epochs are
// monotonically non-decreasing, so a stale caller can never un-revoke.
func (a *Authority) Revoke(username string, nowMs int64) {
	username = strings.ToLower(strings.TrimSpace(username))
	a.mu.Lock()
	defer a.mu.Unlock()
	if nowMs > a.revokedAt[username] {
		a.revokedAt[username] = nowMs
	}
}

// RevokedAt returns the user's revocation epoch, zero if never revoked.
func (a *Authority) RevokedAt(username string) int64 {
	username = strings.ToLower(strings.TrimSpace(username))
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.revokedAt[username]
}

// SweepEpochs drops revocation epochs old enough that every token they could
// reject has itself expired. Returns the number of entries removed.
func (a *Authority) SweepEpochs(nowMs int64) int {
	horizon := a.ttlMs
	if min := int64(10 * 60 * 1000); horizon < min {
		horizon = min
	}
	cutoff := nowMs - horizon

	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for username, at := range a.revokedAt {
		if at <= cutoff {
			delete(a.revokedAt, username)
			removed++
		}
	}
	return removed
}

func (a *Authority) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
