package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Sweep intervals. Tasks are independent; a slow sweep never delays the
// others, and a missed tick coalesces into the next one.
const (
	pairingSweepInterval   = 30 * time.Second
	eventsSweepInterval    = 60 * time.Second
	radioSweepInterval     = 5 * time.Second
	epochsSweepInterval    = 60 * time.Second
	ratelimitSweepInterval = 60 * time.Second
)

// scheduler runs the periodic GC over every TTL-indexed structure.
type scheduler struct {
	svc    *Service
	clock  clockwork.Clock
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func newScheduler(svc *Service, clock clockwork.Clock) *scheduler {
	return &scheduler{
		svc:    svc,
		clock:  clock,
		stopCh: make(chan struct{}),
	}
}

func (s *scheduler) start() {
	s.runEvery("pairing_gc", pairingSweepInterval, func(nowMs int64) int {
		return s.svc.Pairing.Sweep(nowMs)
	})
	s.runEvery("events_gc", eventsSweepInterval, func(nowMs int64) int {
		return s.svc.Events.Sweep(nowMs)
	})
	s.runEvery("radio_state_gc", radioSweepInterval, func(nowMs int64) int {
		return s.svc.Radio.Sweep(nowMs)
	})
	s.runEvery("revocation_epoch_gc", epochsSweepInterval, func(nowMs int64) int {
		return s.svc.Tokens.SweepEpochs(nowMs)
	})
	s.runEvery("ratelimit_gc", ratelimitSweepInterval, func(nowMs int64) int {
		return s.svc.Limiter.Sweep(nowMs)
	})
}

func (s *scheduler) stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *scheduler) runEvery(name string, interval time.Duration, sweep func(nowMs int64) int) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := s.clock.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.Chan():
				if removed := sweep(s.clock.Now().UnixMilli()); removed > 0 {
					slog.Debug("gc sweep", "task", name, "removed", removed)
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}
