// Package throughput converts cumulative network byte counters into
// instantaneous rates using the previous sample.
package throughput

import (
	"sync"
	"time"

	"github.com/vitalis-app/probe/internal/models"
)

// Tracker holds the previous counter snapshot. Each Tracker is independent;
// the reporter owns exactly one.
type Tracker struct {
	mu       sync.Mutex
	lastRx   uint64
	lastTx   uint64
	lastTime time.Time
	hasLast  bool
}

// NewTracker creates a tracker with no baseline.
func NewTracker() *Tracker {
	return &Tracker{}
}

// DeriveRates returns upload and download rates in bytes per second.
// The first call, and any call whose timestamp does not advance past the
// previous one, returns zero rates. The snapshot is always replaced.
func (t *Tracker) DeriveRates(c models.NetworkCounters, now time.Time) (upload, download float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasLast {
		dt := now.Sub(t.lastTime).Seconds()
		if dt > 0 {
			upload = float64(delta(c.TxBytes, t.lastTx)) / dt
			download = float64(delta(c.RxBytes, t.lastRx)) / dt
		}
	}

	t.lastRx = c.RxBytes
	t.lastTx = c.TxBytes
	t.lastTime = now
	t.hasLast = true

	return upload, download
}

// delta clamps counter resets and wraps to zero.
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}
