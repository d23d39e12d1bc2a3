package gfsim

import (
	"github.com/gordian-engine/gflood/gfradio"
	"github.com/gordian-engine/gflood/gftimer"
)

// radioMode is the coarse state of a virtual transceiver.
type radioMode uint8

const (
	modeSleep radioMode = iota
	modeIdle
	modeRX        // listening, no signal locked
	modeReceiving // locked onto a frame
	modeTX
)

// simRadio is the gfradio.Radio of one simulated node. All methods run on
// the simulation goroutine, inside the event being drained.
type simRadio struct {
	sim  *Sim
	node *Node

	mode      radioMode
	rxOffMode gfradio.OffMode
	txOffMode gfradio.OffMode
	calMode   gfradio.CalibrationMode
	headerLen uint8

	// rx is the live inbound reception, nil outside one.
	rx *reception

	// autoTxAt is the slot-aligned start instant for a frame written while
	// the radio auto-transitions from a reception into a transmission.
	// Zero means transmit immediately.
	autoTxAt gftimer.Ticks

	// txGen invalidates scheduled transmission work when bumped.
	txGen uint64

	lastRSSI int8
}

var _ gfradio.Radio = (*simRadio)(nil)

func (r *simRadio) StartTX() {
	r.cancelRx()
	r.mode = modeTX
}

func (r *simRadio) StartRX() {
	r.cancelRx()
	r.mode = modeRX
}

func (r *simRadio) WriteTXFIFO(header, payload []byte) {
	frame := make([]byte, 0, len(header)+len(payload))
	frame = append(frame, header...)
	frame = append(frame, payload...)

	at := r.autoTxAt
	if at == 0 {
		at = r.sim.now
	}
	gen := r.txGen
	r.sim.schedule(at, func(now gftimer.Ticks) {
		if r.txGen != gen {
			return
		}
		r.sim.beginTransmission(r.node, frame, now)
	})
}

func (r *simRadio) FlushRX() { r.cancelRx() }

func (r *simRadio) FlushTX() { r.txGen++ }

func (r *simRadio) GoIdle() {
	r.cancelRx()
	r.mode = modeIdle
}

func (r *simRadio) GoSleep() {
	r.cancelRx()
	r.mode = modeSleep
}

func (r *simRadio) ReconfigAfterSleep() {}

func (r *simRadio) SetHeaderLenRX(n uint8) { r.headerLen = n }

func (r *simRadio) SetRXOffMode(m gfradio.OffMode) { r.rxOffMode = m }

func (r *simRadio) SetTXOffMode(m gfradio.OffMode) { r.txOffMode = m }

func (r *simRadio) SetCalibrationMode(m gfradio.CalibrationMode) { r.calMode = m }

func (r *simRadio) ManualCalibration() {}

func (r *simRadio) LastPacketRSSI() int8 { return r.lastRSSI }

func (r *simRadio) CurrentRSSI() (int8, bool) {
	if r.mode != modeRX && r.mode != modeReceiving {
		return 0, false
	}
	return r.sim.cfg.NoiseFloor, true
}

func (r *simRadio) IsBusy() bool { return r.mode == modeReceiving || r.mode == modeTX }

func (r *simRadio) ClearPendingInterrupts() {}

func (r *simRadio) cancelRx() {
	if r.rx != nil {
		r.rx.canceled = true
		r.rx = nil
	}
}

// offTarget maps a configured off mode to the state a radio parks in when
// its current activity ends.
func offTarget(m gfradio.OffMode) radioMode {
	switch m {
	case gfradio.OffModeRX:
		return modeRX
	case gfradio.OffModeTX:
		return modeTX
	default:
		return modeIdle
	}
}
