package gftimer

import (
	"sync"
	"time"
)

// Wall is a Scheduler backed by the OS monotonic clock.
//
// Both clock domains are synthesized from a single time origin, so the
// paired read cannot skew. The update gate is a no-op: there is no periodic
// update interrupt to suspend.
//
// Scheduled callbacks run on their own goroutine. Callers that need the
// callback serialized with radio events must arrange that in the callback
// itself; see gfemu for an example.
type Wall struct {
	hfHz uint64
	lfHz uint64

	origin time.Time

	mu    sync.Mutex
	timer *time.Timer
}

// NewWall returns a Wall whose clocks tick at the given rates and read zero
// at the time of the call.
func NewWall(hfTicksPerSecond, lfTicksPerSecond uint64) *Wall {
	return &Wall{
		hfHz:   hfTicksPerSecond,
		lfHz:   lfTicksPerSecond,
		origin: time.Now(),
	}
}

// ticksAt converts an elapsed duration to ticks at hz without overflowing
// the intermediate product.
func ticksAt(hz uint64, d time.Duration) Ticks {
	sec := uint64(d / time.Second)
	rem := uint64(d % time.Second)
	return Ticks(sec*hz + rem*hz/uint64(time.Second))
}

// NowHF reports the high-frequency time elapsed since the Wall was created.
func (w *Wall) NowHF() Ticks {
	return ticksAt(w.hfHz, time.Since(w.origin))
}

// NowLF reports the low-frequency time elapsed since the Wall was created.
func (w *Wall) NowLF() Ticks {
	return ticksAt(w.lfHz, time.Since(w.origin))
}

// Now reports both clocks derived from one reading of the monotonic clock.
func (w *Wall) Now() (hf, lf Ticks) {
	d := time.Since(w.origin)
	return ticksAt(w.hfHz, d), ticksAt(w.lfHz, d)
}

// Schedule runs fn once high-frequency time at is reached, replacing any
// pending callback.
func (w *Wall) Schedule(at Ticks, fn func(now Ticks)) {
	var wait time.Duration
	if now := w.NowHF(); at > now {
		wait = time.Duration(uint64(at-now) * uint64(time.Second) / w.hfHz)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(wait, func() {
		fn(w.NowHF())
	})
}

// Cancel stops the pending callback, if any.
func (w *Wall) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// UpdateDisable is a no-op on the wall clock.
func (w *Wall) UpdateDisable() {}

// UpdateEnable is a no-op on the wall clock.
func (w *Wall) UpdateEnable() {}
