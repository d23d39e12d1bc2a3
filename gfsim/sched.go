package gfsim

import "github.com/gordian-engine/gflood/gftimer"

// simScheduler is the gftimer.Scheduler of one simulated node, backed by
// the shared event queue. The low-frequency clock is derived from the
// high-frequency one, so the two never drift in simulation.
type simScheduler struct {
	sim *Sim

	// gen invalidates the pending callback when bumped.
	gen uint64
}

var _ gftimer.Scheduler = (*simScheduler)(nil)

func (ss *simScheduler) NowHF() gftimer.Ticks { return ss.sim.now }

func (ss *simScheduler) NowLF() gftimer.Ticks {
	return ss.sim.now / gftimer.Ticks(ss.sim.hfPerLF)
}

func (ss *simScheduler) Now() (hf, lf gftimer.Ticks) {
	return ss.NowHF(), ss.NowLF()
}

func (ss *simScheduler) Schedule(at gftimer.Ticks, fn func(now gftimer.Ticks)) {
	ss.gen++
	gen := ss.gen
	ss.sim.schedule(at, func(now gftimer.Ticks) {
		if ss.gen != gen {
			return
		}
		ss.gen++
		fn(now)
	})
}

func (ss *simScheduler) Cancel() { ss.gen++ }

// The clock-update interrupt has no simulated counterpart; the critical
// windows around the radio FIFO are meaningless in virtual time.

func (ss *simScheduler) UpdateDisable() {}

func (ss *simScheduler) UpdateEnable() {}
