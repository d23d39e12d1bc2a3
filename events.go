package gflood

import (
	"github.com/gordian-engine/gflood/gfradio"
	"github.com/gordian-engine/gflood/gftimer"
)

// The Engine is the radio driver's event handler. Every handler is gated on
// the session being active, so events straying across a flood boundary are
// no-ops.
var _ gfradio.EventHandler = (*Engine)(nil)

// RxStarted handles a detected preamble: it opens the update-interrupt
// exclusion window for the FIFO-adjacent part of the reception and, on the
// initiator, suppresses the retransmission timeout so that an incoming
// packet is never trampled by a retransmission.
func (e *Engine) RxStarted(ts gftimer.Ticks) {
	if !e.s.active {
		return
	}

	e.sched.UpdateDisable()

	e.s.tRxStart = ts
	e.s.headerOK = false

	if e.stats != nil {
		e.stats.alreadyCounted = false
		e.stats.pktCnt++
		if e.stats.rxStarted == 0 {
			e.stats.timeToFirstRx = ts - e.stats.floodStart
		}
		e.stats.rxStarted++
	}

	if e.s.role == RoleInitiator {
		e.sched.Cancel()
	}
}

// HeaderReceived handles the header bytes arriving mid-reception, before
// the CRC is known. A header that cannot belong to this flood aborts the
// attempt right away, so the radio restarts listening instead of riding out
// a foreign frame.
func (e *Engine) HeaderReceived(ts gftimer.Ticks, header []byte, pktLen uint8) {
	if !e.s.active {
		return
	}

	if !e.processHeader(header, pktLen, false) {
		e.RxFailed(ts)
	}
}

// RxEnded handles a CRC-confirmed reception: relay or terminate, capture
// the payload on a receiver's first reception, and feed the
// synchronization bookkeeping.
func (e *Engine) RxEnded(ts gftimer.Ticks, pkt []byte, pktLen uint8) {
	if !e.s.active {
		return
	}

	e.sched.UpdateEnable()
	e.s.tRxStop = ts
	if e.stats != nil {
		e.stats.pktCntCRCOk++
	}

	if !e.processHeader(pkt, pktLen, true) {
		e.RxFailed(ts)
		return
	}

	hdrLen := e.headerLen()
	payload := pkt[int(hdrLen) : int(hdrLen)+int(e.s.payloadLen)]

	rcvdRelayCnt := e.s.hdr.RelayCnt
	// This node's own copy travels one hop further.
	e.s.hdr.RelayCnt++

	if e.s.hdr.NTxMax == UnknownNTxMax || e.s.nTx < e.s.hdr.NTxMax {
		// The radio switches to TX on its own when the reception window
		// closes; the frame just has to be queued before the preamble is
		// out.
		e.radio.WriteTXFIFO(e.wireHeader(), payload)
	} else {
		e.Stop()
	}

	if e.stats != nil {
		if e.withRelayCnt() {
			if e.s.nRx == 0 {
				e.stats.relayCntFirstRx = rcvdRelayCnt
			}
			e.stats.hopsSeen.Set(uint(rcvdRelayCnt))
		}
		e.stats.rssiSum += int16(e.radio.LastPacketRSSI())
	}

	e.s.nRx++

	if e.s.role == RoleReceiver && e.s.nRx == 1 {
		copy(e.s.payload, payload)
	}

	if e.s.hdr.Sync {
		e.s.relayCntLastRX = e.s.hdr.RelayCnt - 1

		if !e.s.tRefUpdated {
			e.updateTRef(e.s.tRxStart-e.propagationDelay(), e.s.hdr.RelayCnt-1)
			e.s.tSlotEstimated = e.estimateSlot(hdrLen + e.s.payloadLen)
		}

		if e.s.relayCntLastRX == e.s.relayCntLastTX+1 && e.s.nTx > 0 {
			// This reception directly echoes this node's own last
			// transmission: the gap between them is one slot.
			e.addSlotMeasurement(uint32(e.s.tRxStart - e.s.tTxStart - e.propagationDelay()))
		}
	}
}

// TxStarted records when the transmission left the radio.
func (e *Engine) TxStarted(ts gftimer.Ticks) {
	if !e.s.active {
		return
	}
	e.s.tTxStart = ts
}

// TxEnded closes out a transmission: synchronization bookkeeping, the
// transmit-count termination rule, and the initiator's timeout guard.
func (e *Engine) TxEnded(ts gftimer.Ticks) {
	if !e.s.active {
		return
	}

	e.s.tTxStop = ts

	if e.s.hdr.Sync {
		e.s.relayCntLastTX = e.s.hdr.RelayCnt

		if !e.s.tRefUpdated {
			// Nothing received so far, so the transmission itself is the
			// best reference. This is the initiator's normal path.
			e.updateTRef(e.s.tTxStart, e.s.hdr.RelayCnt)
		}
		if e.s.relayCntLastTX == e.s.relayCntLastRX+1 && e.s.nRx > 0 {
			e.addSlotMeasurement(uint32(e.s.tTxStart - e.s.tRxStart + e.propagationDelay()))
		}
	}

	if e.s.tSlotEstimated == 0 {
		// An initiator that never hears an echo still needs a slot length
		// for the timeout guard.
		e.s.tSlotEstimated = e.estimateSlot(e.headerLen() + e.s.payloadLen)
	}

	e.s.nTx++

	if e.s.nTx == e.s.hdr.NTxMax && (e.s.hdr.NTxMax > 0 || e.s.role == RoleReceiver) {
		// The transmit budget is spent. An unbounded flood only ends this
		// way on a receiver, whose counter wrapped; an unbounded initiator
		// never terminates on transmit count alone.
		e.Stop()
	} else if e.s.role == RoleInitiator && e.s.nRx == 0 {
		e.scheduleTimeout()
	}
}

// RxFailed recovers from a failed reception attempt, whether the radio
// reported a bad CRC or the engine itself rejected the header: count the
// failure once, close the exclusion window, and listen again.
func (e *Engine) RxFailed(ts gftimer.Ticks) {
	if !e.s.active {
		return
	}

	e.countRxFail()

	e.sched.UpdateEnable()
	e.radio.FlushRX()
	e.radio.StartRX()
}

// RxTxError recovers from a radio fault outside the normal RX/TX flow by
// flushing both directions and listening again.
func (e *Engine) RxTxError(ts gftimer.Ticks) {
	if !e.s.active {
		return
	}

	e.log.Warn("Radio signaled an RX/TX error; restarting reception")

	if e.stats != nil {
		e.stats.errorCnt++
	}

	e.sched.UpdateEnable()
	e.radio.FlushRX()
	e.radio.FlushTX()
	e.radio.StartRX()
}

// propagationDelay is the fixed TX-to-RX offset in high-frequency ticks.
func (e *Engine) propagationDelay() gftimer.Ticks {
	return gftimer.Ticks(e.cfg.Timing.nsToHF(e.cfg.Timing.PropagationDelayNs))
}
