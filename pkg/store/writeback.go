// pkg/store/writeback.go

package store

import (
	"sync"
	"time"

	"MemKV/pkg/utils"
)

// Writeback runs Sync on a schedule, either woken early by Kick (a
// caller doing a Set that wants a bound on staleness) or by a timer
// using the interval passed to Run — the map itself never
// schedules its own flushes, that's left to a caller to drive.
type Writeback struct {
	mc    *MapCore
	flush func(key, value []byte) error
	log   *utils.LogHandle

	mu      sync.Mutex
	cond    *utils.Cond
	stopped bool
}

// NewWriteback wires flush as the sync target for mc. Call Run in its
// own goroutine.
func NewWriteback(mc *MapCore, flush func(key, value []byte) error) *Writeback {
	wb := &Writeback{mc: mc, flush: flush, log: utils.GetLogger("writeback")}
	wb.cond = utils.NewCond(&wb.mu)
	return wb
}

// Kick wakes the writeback loop immediately instead of waiting for its
// next timer tick.
func (wb *Writeback) Kick() { wb.cond.Signal() }

// Stop ends the loop after its current sync finishes.
func (wb *Writeback) Stop() {
	wb.mu.Lock()
	wb.stopped = true
	wb.mu.Unlock()
	wb.cond.Broadcast()
}

// Run flushes dirty entries until Stop is called, waking every interval
// or immediately on Kick.
func (wb *Writeback) Run(interval time.Duration) {
	for {
		wb.mu.Lock()
		if wb.stopped {
			wb.mu.Unlock()
			return
		}
		wb.cond.WaitWithTimeout(interval)
		stopped := wb.stopped
		wb.mu.Unlock()

		start := utils.Now()
		n, code, err := wb.mc.Sync(wb.flush)
		if err != nil {
			wb.log.Errorf("sync: flushed %d entries before error: %s (%s)", n, err, code)
		} else if n > 0 {
			wb.log.Infof("sync: flushed %d entries in %s", n, utils.Now().Sub(start))
		}
		if stopped {
			return
		}
	}
}
