package gfsim

import (
	"bytes"

	"github.com/gordian-engine/gflood/gftimer"
)

// reception is one frame in flight toward one listener. Each of the radio
// events derived from it checks that it is still the listener's live
// reception before delivering.
type reception struct {
	frame   []byte
	txStart gftimer.Ticks
	rxStart gftimer.Ticks

	corrupted bool
	canceled  bool
}

// beginTransmission puts a frame on the air at instant at: the transmitter
// sees TxStarted now and TxEnded one air time later, and every linked
// listener is offered the frame.
func (s *Sim) beginTransmission(n *Node, frame []byte, at gftimer.Ticks) {
	r := n.radio
	r.cancelRx()
	r.mode = modeTX

	n.Engine.TxStarted(at)

	gen := r.txGen
	s.schedule(at+s.airTicks(uint8(len(frame))), func(now gftimer.Ticks) {
		if r.txGen != gen {
			return
		}
		r.mode = offTarget(r.txOffMode)
		n.Engine.TxEnded(now)
	})

	for i, peer := range s.nodes {
		if i == int(n.ID) || !s.cfg.Topology.Linked(int(n.ID), i) {
			continue
		}
		s.offerFrame(peer, frame, at)
	}
}

// offerFrame presents a transmission starting at txStart to one listener.
// A node that is asleep, idle or transmitting never notices it. A listener
// already locked onto a signal keeps its reception only when the new frame
// is byte-identical and transmitted at the same instant, which is how
// concurrent relays reinforce each other; anything else destroys both
// signals.
func (s *Sim) offerFrame(peer *Node, frame []byte, txStart gftimer.Ticks) {
	r := peer.radio
	switch r.mode {
	case modeSleep, modeIdle, modeTX:
		return
	}

	if s.rng.Float64() < s.cfg.DropRate {
		return
	}

	if cur := r.rx; cur != nil {
		if !cur.corrupted && cur.txStart == txStart && bytes.Equal(cur.frame, frame) {
			return
		}
		s.corrupt(peer)
		return
	}

	rx := &reception{
		frame:   append([]byte(nil), frame...),
		txStart: txStart,
		rxStart: txStart + s.propTicks(),
	}
	r.rx = rx

	headerLen := r.headerLen
	if int(headerLen) > len(rx.frame) {
		headerLen = uint8(len(rx.frame))
	}

	s.schedule(rx.rxStart, func(now gftimer.Ticks) {
		if rx.canceled || r.rx != rx {
			return
		}
		if rx.corrupted {
			r.rx = nil
			peer.Engine.RxStarted(now)
			peer.Engine.RxFailed(now)
			return
		}
		r.mode = modeReceiving
		peer.Engine.RxStarted(now)
	})

	s.schedule(rx.rxStart+gftimer.Ticks(headerLen)*s.byteTicks(), func(now gftimer.Ticks) {
		if rx.canceled || rx.corrupted || r.rx != rx {
			return
		}
		peer.Engine.HeaderReceived(now, rx.frame[:headerLen], uint8(len(rx.frame)))
	})

	s.schedule(rx.txStart+s.airTicks(uint8(len(rx.frame)))+s.propTicks(), func(now gftimer.Ticks) {
		if rx.canceled || rx.corrupted || r.rx != rx {
			return
		}
		r.rx = nil
		r.lastRSSI = s.cfg.PacketRSSI
		r.mode = offTarget(r.rxOffMode)

		// A radio parked in TX off mode starts relaying the moment the
		// reception ends; the frame the engine writes during RxEnded goes
		// on the air exactly one slot after the frame it relays.
		r.autoTxAt = rx.txStart + s.slotTicks(uint8(len(rx.frame)))
		peer.Engine.RxEnded(now, rx.frame, uint8(len(rx.frame)))
		r.autoTxAt = 0
	})
}

// corrupt destroys the listener's in-flight reception. Mid-signal the
// failure surfaces immediately; during the preamble it surfaces at the
// instant the sync word would have been detected.
func (s *Sim) corrupt(peer *Node) {
	rx := peer.radio.rx
	if rx == nil || rx.corrupted {
		return
	}
	rx.corrupted = true

	if peer.radio.mode == modeReceiving {
		peer.radio.rx = nil
		peer.Engine.RxFailed(s.now)
	}
}

func (s *Sim) ticksNs(ns uint32) gftimer.Ticks {
	return gftimer.Ticks(uint64(ns) * uint64(s.cfg.Timing.HFTicksPerSecond) / 1_000_000_000)
}

func (s *Sim) airTicks(pktLen uint8) gftimer.Ticks {
	return s.ticksNs(s.cfg.Timing.AirTimeNs(pktLen))
}

func (s *Sim) slotTicks(pktLen uint8) gftimer.Ticks {
	return s.ticksNs(s.cfg.Timing.SlotNs(pktLen))
}

func (s *Sim) propTicks() gftimer.Ticks {
	return s.ticksNs(s.cfg.Timing.PropagationDelayNs)
}

func (s *Sim) byteTicks() gftimer.Ticks {
	return s.ticksNs(s.cfg.Timing.TxByteTimeNs)
}
