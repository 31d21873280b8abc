package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTTL        = int64(300_000)
	testJoinWindow = int64(10_000)
	testMuteWindow = int64(1_500)
)

func newTestStore() *Store {
	return NewStore(testTTL, testJoinWindow, testMuteWindow)
}

func TestAppendDrain_AudienceRouting(t *testing.T) {
	s := newTestStore()
	require.True(t, s.Append("alice", JoinEvent{Aud: AudienceRoblox, TS: 1000}))
	require.True(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: 2000, Muted: true}))

	web := s.DrainWeb("alice", 3000)
	require.Len(t, web, 1)
	assert.Equal(t, KindRadioMute, web[0].EventKind())

	// The join stayed queued for the game server.
	roblox := s.DrainRoblox("alice", 3000)
	require.Len(t, roblox, 1)
	assert.Equal(t, KindRadioJoin, roblox[0].EventKind())

	// Both queues fully drained now.
	assert.Empty(t, s.DrainWeb("alice", 3000))
	assert.Empty(t, s.DrainRoblox("alice", 3000))
}

func TestDrain_PreservesAppendOrder(t *testing.T) {
	s := newTestStore()
	require.True(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: 1000, Muted: true}))
	require.True(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: 5000, Muted: false}))
	require.True(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: 9000, Muted: true}))

	got := s.DrainWeb("alice", 10_000)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1000), got[0].Timestamp())
	assert.Equal(t, int64(5000), got[1].Timestamp())
	assert.Equal(t, int64(9000), got[2].Timestamp())
}

func TestAppend_JoinCoalescing(t *testing.T) {
	s := newTestStore()
	require.True(t, s.Append("alice", JoinEvent{Aud: AudienceRoblox, TS: 1000}))

	// Second join inside the window is a no-op.
	assert.False(t, s.Append("alice", JoinEvent{Aud: AudienceRoblox, TS: 1000 + testJoinWindow - 1}))
	assert.Equal(t, 1, s.QueueLen("alice"))

	// Outside the window it is stored.
	assert.True(t, s.Append("alice", JoinEvent{Aud: AudienceRoblox, TS: 1000 + 2*testJoinWindow}))
	assert.Equal(t, 2, s.QueueLen("alice"))
}

func TestAppend_MuteCoalescing(t *testing.T) {
	s := newTestStore()
	require.True(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: 1000, Muted: true}))

	// Same state inside the window: suppressed.
	assert.False(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: 1500, Muted: true}))

	// Opposite state inside the window: stored.
	assert.True(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: 1600, Muted: false}))

	// Same state as the new last event but past the window: stored.
	assert.True(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: 1600 + testMuteWindow, Muted: false}))

	assert.Equal(t, 3, s.QueueLen("alice"))
}

func TestAppend_CoalescingOnlyAgainstLastEvent(t *testing.T) {
	s := newTestStore()
	require.True(t, s.Append("alice", JoinEvent{Aud: AudienceRoblox, TS: 1000}))
	require.True(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: 1100, Muted: true}))

	// A join right after a mute is not a duplicate join.
	assert.True(t, s.Append("alice", JoinEvent{Aud: AudienceRoblox, TS: 1200}))
}

func TestQueues_AreIndependentPerUser(t *testing.T) {
	s := newTestStore()
	require.True(t, s.Append("alice", JoinEvent{Aud: AudienceRoblox, TS: 1000}))
	require.True(t, s.Append("bob", JoinEvent{Aud: AudienceRoblox, TS: 1001}))

	assert.Len(t, s.DrainRoblox("alice", 2000), 1)
	assert.Len(t, s.DrainRoblox("bob", 2000), 1)
}

func TestDrain_FiltersExpired(t *testing.T) {
	s := newTestStore()
	require.True(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: 0, Muted: true}))
	require.True(t, s.Append("alice", MuteEvent{Aud: AudienceWeb, TS: testTTL, Muted: false}))

	got := s.DrainWeb("alice", testTTL+1)
	require.Len(t, got, 1)
	assert.Equal(t, testTTL, got[0].Timestamp())
}

func TestSweep(t *testing.T) {
	s := newTestStore()
	require.True(t, s.Append("alice", JoinEvent{Aud: AudienceRoblox, TS: 0}))
	require.True(t, s.Append("bob", JoinEvent{Aud: AudienceRoblox, TS: testTTL}))

	dropped := s.Sweep(testTTL + 1)
	assert.Equal(t, 1, dropped)
	assert.Zero(t, s.QueueLen("alice"))
	assert.Equal(t, 1, s.QueueLen("bob"))
}

func TestEventJSON(t *testing.T) {
	mute, err := json.Marshal(MuteEvent{Aud: AudienceWeb, TS: 42, Muted: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"RADIO_MUTE","audience":"web","ts":42,"muted":true}`, string(mute))

	unmute, err := json.Marshal(MuteEvent{Aud: AudienceWeb, TS: 43, Muted: false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"RADIO_UNMUTE","audience":"web","ts":43,"muted":false}`, string(unmute))

	kick, err := json.Marshal(KickEvent{Aud: AudienceWeb, TS: 44, Reason: "new_code"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"KICK","audience":"web","ts":44,"reason":"new_code"}`, string(kick))

	join, err := json.Marshal(JoinEvent{Aud: AudienceRoblox, TS: 45})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"RADIO_JOIN","audience":"roblox","ts":45}`, string(join))
}
