// Package radio keeps the last reported playback snapshot per user and
// derives the "who's currently listening" view from it.
package radio

import (
	"math"
	"sort"
	"sync"

	"github.com/radiolink/radiolink/internal/presence"
)

// Snapshot is the last playback state a browser reported for a user.
type Snapshot struct {
	TrackIndex int
	TrackName  string
	PositionAt float64 // seconds
	IsPlaying  bool
	Muted      bool
	ServerTS   int64 // wall time of the snapshot
	UpdatedAt  int64 // last mutation
}

// Update carries a partial snapshot write. Nil fields fall back to the
// previous snapshot's value (zero values for an initial write).
type Update struct {
	TrackIndex *int
	TrackName  *string
	PositionAt *float64
	IsPlaying  *bool
	Muted      *bool
}

// Listener is one row of the active-listeners view.
type Listener struct {
	Username   string  `json:"username"`
	TrackIndex int     `json:"trackIndex"`
	TrackName  string  `json:"trackName"`
	Position   float64 `json:"positionSec"`
	IsPlaying  bool    `json:"isPlaying"`
	Muted      bool    `json:"muted"`
	LastSeenMs int64   `json:"lastSeenMs"`
}

type Table struct {
	minGapMs int64
	ttlMs    int64

	mu sync.Mutex
	m  map[string]Snapshot
}

func NewTable(minGapMs, ttlMs int64) *Table {
	return &Table{
		minGapMs: minGapMs,
		ttlMs:    ttlMs,
		m:        make(map[string]Snapshot),
	}
}

// Update applies a partial write for username. It reports false when the
// write arrives inside the minimum update gap and is ignored.
func (t *Table) Update(username string, upd Update, nowMs int64) bool {
	key := presence.Normalize(username)

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, exists := t.m[key]
	if exists && nowMs-prev.UpdatedAt < t.minGapMs {
		return false
	}

	next := prev
	if upd.TrackIndex != nil {
		next.TrackIndex = *upd.TrackIndex
	}
	if upd.TrackName != nil {
		next.TrackName = *upd.TrackName
	}
	if upd.PositionAt != nil && !math.IsNaN(*upd.PositionAt) && !math.IsInf(*upd.PositionAt, 0) {
		next.PositionAt = *upd.PositionAt
	}
	if next.PositionAt < 0 {
		next.PositionAt = 0
	}
	if upd.IsPlaying != nil {
		next.IsPlaying = *upd.IsPlaying
	}
	if upd.Muted != nil {
		next.Muted = *upd.Muted
	}
	next.ServerTS = nowMs
	next.UpdatedAt = nowMs
	t.m[key] = next
	return true
}

// Get returns the snapshot for username, if any.
func (t *Table) Get(username string) (Snapshot, bool) {
	key := presence.Normalize(username)
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.m[key]
	return snap, ok
}

// Remove deletes the snapshot for username.
func (t *Table) Remove(username string) {
	key := presence.Normalize(username)
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, key)
}

// Active builds the current-listeners view: fresh snapshots of users the
// inGame predicate accepts, with a live playback position, sorted by how
// recently each user last wrote (most recent first).
func (t *Table) Active(nowMs int64, inGame func(username string) bool) []Listener {
	t.mu.Lock()
	defer t.mu.Unlock()

	listeners := make([]Listener, 0, len(t.m))
	for username, snap := range t.m {
		if nowMs-snap.UpdatedAt > t.ttlMs {
			continue
		}
		if !inGame(username) {
			continue
		}
		position := snap.PositionAt
		if snap.IsPlaying {
			if elapsed := float64(nowMs-snap.ServerTS) / 1000; elapsed > 0 {
				position += elapsed
			}
		}
		listeners = append(listeners, Listener{
			Username:   username,
			TrackIndex: snap.TrackIndex,
			TrackName:  snap.TrackName,
			Position:   position,
			IsPlaying:  snap.IsPlaying,
			Muted:      snap.Muted,
			LastSeenMs: nowMs - snap.UpdatedAt,
		})
	}

	sort.Slice(listeners, func(i, j int) bool {
		return listeners[i].LastSeenMs < listeners[j].LastSeenMs
	})
	return listeners
}

// Sweep drops snapshots older than the TTL. Returns the number removed.
func (t *Table) Sweep(nowMs int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, snap := range t.m {
		if nowMs-snap.UpdatedAt > t.ttlMs {
			delete(t.m, key)
			removed++
		}
	}
	return removed
}
