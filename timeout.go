package gflood

import "github.com/gordian-engine/gflood/gftimer"

// scheduleTimeout arms the retransmission guard a fixed number of slots
// past the instant the last guarded transmission was scheduled for. The
// relay counter a timeout retransmission will carry is latched now, at
// arming time: a guard that fires late must not under-report how far the
// flood has progressed, so pushes only ever increment it.
func (e *Engine) scheduleTimeout() {
	slots := e.cfg.Timing.SlotTimeoutSlots
	if e.withRelayCnt() {
		e.s.relayCntTimeout = e.s.hdr.RelayCnt + slots
	}
	at := e.s.tTimeout + gftimer.Ticks(uint32(slots)*e.s.tSlotEstimated)
	e.sched.Schedule(at, e.timeoutExpired)
}

// timeoutExpired is the guard callback. With the radio idle it retransmits
// the original payload immediately, stamped with the latched relay counter;
// mid-reception it backs off exactly one slot and re-arms, because an
// incoming packet is always worth more than a retransmission.
func (e *Engine) timeoutExpired(now gftimer.Ticks) {
	if !e.s.active {
		return
	}

	if !e.radio.IsBusy() {
		e.radio.StartTX()
		e.s.hdr.RelayCnt = e.s.relayCntTimeout
		e.radio.WriteTXFIFO(e.wireHeader(), e.s.payload[:e.s.payloadLen])
		e.s.tTimeout = now
	} else {
		e.s.relayCntTimeout++
		e.sched.Schedule(now+gftimer.Ticks(e.s.tSlotEstimated), e.timeoutExpired)
	}
}
