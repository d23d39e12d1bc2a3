// Package gfradiotest provides a recording radio double for engine tests.
package gfradiotest

import "github.com/gordian-engine/gflood/gfradio"

// Op is one recorded driver call.
type Op string

// Driver calls recorded by Radio, in the order they were made.
const (
	OpStartTX        Op = "start_tx"
	OpStartRX        Op = "start_rx"
	OpWriteTXFIFO    Op = "write_tx_fifo"
	OpFlushRX        Op = "flush_rx"
	OpFlushTX        Op = "flush_tx"
	OpGoIdle         Op = "go_idle"
	OpGoSleep        Op = "go_sleep"
	OpReconfig       Op = "reconfig_after_sleep"
	OpSetHeaderLen   Op = "set_header_len_rx"
	OpSetRXOff       Op = "set_rxoff_mode"
	OpSetTXOff       Op = "set_txoff_mode"
	OpSetCalibration Op = "set_calibration_mode"
	OpCalibrate      Op = "manual_calibration"
	OpClearPending   Op = "clear_pending_interrupts"
)

// Radio records every driver call and lets tests script the values the
// engine reads back. The zero value is ready to use.
//
// Radio performs no locking; it is meant for the single-context tests the
// engine's concurrency contract prescribes.
type Radio struct {
	// Ops is the call log, in order. Reads (RSSI, IsBusy) are not logged.
	Ops []Op

	// Busy is returned by IsBusy.
	Busy bool

	// PacketRSSI is returned by LastPacketRSSI.
	PacketRSSI int8

	// ChannelRSSI and ChannelRSSIValid are returned by CurrentRSSI.
	ChannelRSSI      int8
	ChannelRSSIValid bool

	// HeaderLenRX holds the last SetHeaderLenRX value.
	HeaderLenRX uint8

	// RXOffMode and TXOffMode hold the last configured off-modes.
	RXOffMode gfradio.OffMode
	TXOffMode gfradio.OffMode

	// CalibrationMode holds the last configured calibration mode.
	CalibrationMode gfradio.CalibrationMode

	// Frames holds a copy of every WriteTXFIFO frame, header and payload
	// concatenated, oldest first.
	Frames [][]byte
}

var _ gfradio.Radio = (*Radio)(nil)

func (r *Radio) record(op Op) { r.Ops = append(r.Ops, op) }

func (r *Radio) StartTX() { r.record(OpStartTX) }

func (r *Radio) StartRX() { r.record(OpStartRX) }

func (r *Radio) WriteTXFIFO(header, payload []byte) {
	r.record(OpWriteTXFIFO)
	frame := make([]byte, 0, len(header)+len(payload))
	frame = append(frame, header...)
	frame = append(frame, payload...)
	r.Frames = append(r.Frames, frame)
}

func (r *Radio) FlushRX() { r.record(OpFlushRX) }

func (r *Radio) FlushTX() { r.record(OpFlushTX) }

func (r *Radio) GoIdle() { r.record(OpGoIdle) }

func (r *Radio) GoSleep() { r.record(OpGoSleep) }

func (r *Radio) ReconfigAfterSleep() { r.record(OpReconfig) }

func (r *Radio) SetHeaderLenRX(n uint8) {
	r.record(OpSetHeaderLen)
	r.HeaderLenRX = n
}

func (r *Radio) SetRXOffMode(m gfradio.OffMode) {
	r.record(OpSetRXOff)
	r.RXOffMode = m
}

func (r *Radio) SetTXOffMode(m gfradio.OffMode) {
	r.record(OpSetTXOff)
	r.TXOffMode = m
}

func (r *Radio) SetCalibrationMode(m gfradio.CalibrationMode) {
	r.record(OpSetCalibration)
	r.CalibrationMode = m
}

func (r *Radio) ManualCalibration() { r.record(OpCalibrate) }

func (r *Radio) LastPacketRSSI() int8 { return r.PacketRSSI }

func (r *Radio) CurrentRSSI() (int8, bool) { return r.ChannelRSSI, r.ChannelRSSIValid }

func (r *Radio) IsBusy() bool { return r.Busy }

func (r *Radio) ClearPendingInterrupts() { r.record(OpClearPending) }

// LastFrame returns the most recent WriteTXFIFO frame, or nil when none.
func (r *Radio) LastFrame() []byte {
	if len(r.Frames) == 0 {
		return nil
	}
	return r.Frames[len(r.Frames)-1]
}

// CountOp reports how many times op was recorded.
func (r *Radio) CountOp(op Op) int {
	var n int
	for _, o := range r.Ops {
		if o == op {
			n++
		}
	}
	return n
}
