package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTTL = int64(600_000)

func TestMintVerify_RoundTrip(t *testing.T) {
	a := NewAuthority("secret", testTTL)

	tok, exp := a.Mint("Alice", 1000)
	require.NotEmpty(t, tok)
	assert.Equal(t, int64(1000+testTTL), exp)

	claims, err := a.Verify(tok, 2000)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, int64(1000), claims.IssuedAt)
	assert.Equal(t, exp, claims.ExpiresAt)
}

func TestMint_DisabledWithoutSecret(t *testing.T) {
	a := NewAuthority("", testTTL)
	assert.False(t, a.Enabled())

	tok, exp := a.Mint("alice", 1000)
	assert.Empty(t, tok)
	assert.Zero(t, exp)

	_, err := a.Verify("anything", 1000)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestVerify_FailureKinds(t *testing.T) {
	a := NewAuthority("secret", testTTL)
	tok, _ := a.Mint("alice", 1000)

	tests := []struct {
		name  string
		token string
		now   int64
		want  error
	}{
		{"missing", "", 2000, ErrMissing},
		{"no separator", "abcdef", 2000, ErrBadFormat},
		{"empty payload", ".sig", 2000, ErrBadFormat},
		{"tampered signature", tok + "x", 2000, ErrBadSignature},
		{"expired", tok, 1000 + testTTL, ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Verify(tt.token, tt.now)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerify_BadPayload(t *testing.T) {
	a := NewAuthority("secret", testTTL)

	// Correctly signed but not base64 JSON.
	payload := "!!!not-base64!!!"
	tok := payload + "." + a.sign(payload)
	_, err := a.Verify(tok, 2000)
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestVerify_SignatureFromOtherSecret(t *testing.T) {
	a := NewAuthority("secret-a", testTTL)
	b := NewAuthority("secret-b", testTTL)

	tok, _ := a.Mint("alice", 1000)
	_, err := b.Verify(tok, 2000)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestRevoke_InvalidatesOlderTokens(t *testing.T) {
	a := NewAuthority("secret", testTTL)

	tok, _ := a.Mint("Alice", 1000)
	a.Revoke("ALICE", 2000)

	_, err := a.Verify(tok, 3000)
	assert.ErrorIs(t, err, ErrRevoked)

	// A token issued at the epoch itself is still valid.
	fresh, _ := a.Mint("alice", 2000)
	_, err = a.Verify(fresh, 3000)
	assert.NoError(t, err)
}

func TestRevoke_Monotonic(t *testing.T) {
	a := NewAuthority("secret", testTTL)
	a.Revoke("alice", 5000)
	a.Revoke("alice", 1000)
	assert.Equal(t, int64(5000), a.RevokedAt("alice"))
}

func TestSweepEpochs(t *testing.T) {
	a := NewAuthority("secret", testTTL)
	a.Revoke("alice", 0)
	a.Revoke("bob", 500_000)

	// Horizon is max(ttl, 10min) = 600_000ms here.
	removed := a.SweepEpochs(600_001)
	assert.Equal(t, 1, removed)
	assert.Zero(t, a.RevokedAt("alice"))
	assert.Equal(t, int64(500_000), a.RevokedAt("bob"))
}

func TestToken_ShapeIsTwoPartURLSafe(t *testing.T) {
	a := NewAuthority("secret", testTTL)
	tok, _ := a.Mint("alice", 1000)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 2)
	for _, part := range parts {
		assert.NotContains(t, part, "+")
		assert.NotContains(t, part, "/")
		assert.NotContains(t, part, "=")
	}
}
