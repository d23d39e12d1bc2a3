package gfemu

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/gordian-engine/gflood"
	"github.com/gordian-engine/gflood/gfradio"
	"github.com/gordian-engine/gflood/gftimer"
)

// radioState is the coarse state of an emulated transceiver.
type radioState uint8

const (
	stSleep radioState = iota
	stIdle
	stRX
	stTX
)

// radio translates datagrams into radio events and frames into datagrams.
//
// Receptions are atomic: one datagram becomes the RxStarted, HeaderReceived
// and RxEnded sequence back to back, stamped with wall-clock ticks.
// Transmissions are likewise instantaneous, so sub-slot timing is not
// modeled; slot pacing comes from the engine's retransmission guard alone.
//
// Every method runs under the owning node's mutex.
type radio struct {
	log *slog.Logger

	// mu is the owning node's mutex, taken by the deferred send goroutine
	// to serialize synthesized transmit events with everything else.
	mu *sync.Mutex

	clock  *gftimer.Wall
	tr     *Transport
	timing gflood.Timing

	handler gfradio.EventHandler

	dropRate float64
	rng      *rand.Rand

	packetRSSI int8
	noiseFloor int8

	state     radioState
	rxOff     gfradio.OffMode
	txOff     gfradio.OffMode
	calMode   gfradio.CalibrationMode
	headerLen uint8

	// rxGen detects mid-reception aborts; txGen invalidates deferred sends.
	rxGen uint64
	txGen uint64

	lastRSSI int8
}

var _ gfradio.Radio = (*radio)(nil)

// deliver synthesizes one reception from an inbound datagram.
func (r *radio) deliver(data []byte) {
	if r.state != stRX {
		return
	}
	if len(data) == 0 || len(data) > 255 {
		return
	}
	if r.dropRate > 0 && r.rng.Float64() < r.dropRate {
		return
	}

	hf := r.clock.NowHF()
	gen := r.rxGen

	r.handler.RxStarted(hf)

	hl := int(r.headerLen)
	if hl > len(data) {
		hl = len(data)
	}
	r.handler.HeaderReceived(hf, data[:hl], uint8(len(data)))
	if r.rxGen != gen {
		// The handler rejected the header and restarted reception.
		return
	}

	r.lastRSSI = r.packetRSSI
	r.state = offTarget(r.rxOff)
	r.handler.RxEnded(r.clock.NowHF(), data, uint8(len(data)))
}

func (r *radio) StartTX() {
	r.rxGen++
	r.state = stTX
}

func (r *radio) StartRX() {
	r.rxGen++
	r.state = stRX
}

// WriteTXFIFO broadcasts the frame from its own goroutine: the engine call
// that wrote the frame must unwind before the synthesized transmit events
// re-enter the handler.
func (r *radio) WriteTXFIFO(header, payload []byte) {
	frame := make([]byte, 0, len(header)+len(payload))
	frame = append(frame, header...)
	frame = append(frame, payload...)

	gen := r.txGen
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.txGen != gen {
			return
		}

		r.state = stTX
		r.handler.TxStarted(r.clock.NowHF())

		err := r.tr.Send(frame)

		r.state = offTarget(r.txOff)
		if err != nil {
			r.log.Warn("Frame broadcast failed", "err", err)
			r.handler.RxTxError(r.clock.NowHF())
			return
		}
		r.handler.TxEnded(r.clock.NowHF())
	}()
}

func (r *radio) FlushRX() { r.rxGen++ }

func (r *radio) FlushTX() { r.txGen++ }

func (r *radio) GoIdle() {
	r.rxGen++
	r.state = stIdle
}

func (r *radio) GoSleep() {
	r.rxGen++
	r.state = stSleep
}

func (r *radio) ReconfigAfterSleep() {}

func (r *radio) SetHeaderLenRX(n uint8) { r.headerLen = n }

func (r *radio) SetRXOffMode(m gfradio.OffMode) { r.rxOff = m }

func (r *radio) SetTXOffMode(m gfradio.OffMode) { r.txOff = m }

func (r *radio) SetCalibrationMode(m gfradio.CalibrationMode) { r.calMode = m }

func (r *radio) ManualCalibration() {}

func (r *radio) LastPacketRSSI() int8 { return r.lastRSSI }

func (r *radio) CurrentRSSI() (int8, bool) {
	if r.state != stRX {
		return 0, false
	}
	return r.noiseFloor, true
}

func (r *radio) IsBusy() bool { return r.state == stTX }

func (r *radio) ClearPendingInterrupts() {}

// offTarget maps a configured off mode to the state the radio parks in
// when the current activity ends.
func offTarget(m gfradio.OffMode) radioState {
	switch m {
	case gfradio.OffModeRX:
		return stRX
	case gfradio.OffModeTX:
		return stTX
	default:
		return stIdle
	}
}
