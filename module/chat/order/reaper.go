package order

import (
	"time"

	"SeqChat/logger"

	"go.uber.org/zap"
)

// sweepLoop is the idle-state reaper: abandoned conversations must not pin
// tracker memory forever. Eviction is safe because the next message from a
// reaped pair re-seeds a fresh tracker from durable storage.
func (e *Engine) sweepLoop() {
	tick := time.NewTicker(e.cfg.SweepInterval)
	defer tick.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case now := <-tick.C:
			e.sweep(now)
		}
	}
}

// sweep evicts trackers idle beyond the inactivity timeout. Trackers with
// a non-empty buffer are skipped: their gap timer fires well inside the
// inactivity window, so a populated buffer means the tracker is not idle.
func (e *Engine) sweep(now time.Time) (evicted int) {
	cutoff := now.Add(-e.cfg.InactivityTimeout)
	for i := range e.shards {
		sh := &e.shards[i]
		sh.mu.Lock()
		for key, t := range sh.trackers {
			t.mu.Lock()
			if len(t.buffer) == 0 && t.lastActivity.Before(cutoff) {
				t.dead = true
				t.disarmLocked()
				delete(sh.trackers, key)
				evicted++
			}
			t.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	if evicted > 0 {
		logger.Debug("reaped idle trackers", zap.Int("evicted", evicted))
	}
	return evicted
}
